package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"incuba/adapters/linelist"
	"incuba/adapters/render"
	"incuba/app"
	"incuba/domain/core"
	"incuba/domain/dist"
	"incuba/domain/results"
	"incuba/internal/errors"
)

// SubmitRunRequest is the POST /api/runs body. Omitted fields fall back to
// the server's configured defaults; an omitted family list fits every
// supported family.
type SubmitRunRequest struct {
	LinelistPath   string    `json:"linelist_path,omitempty"`
	Families       []string  `json:"families,omitempty"`
	Method         string    `json:"method,omitempty"` // auto, optim or mcmc
	Replicates     int       `json:"replicates,omitempty"`
	Quantiles      []float64 `json:"quantiles,omitempty"`
	Seed           *int64    `json:"seed,omitempty"`
	MCMCIterations int       `json:"mcmc_iterations,omitempty"`
	MCMCBurnIn     float64   `json:"mcmc_burnin,omitempty"`
	Filter         string    `json:"filter,omitempty"` // none, fever, travel or epoch-1y
	ExactDates     bool      `json:"exact_dates,omitempty"`
}

// SubmitRunResponse acknowledges an accepted run
type SubmitRunResponse struct {
	RunID  core.RunID        `json:"run_id"`
	Status results.RunStatus `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var body SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.InvalidInput("request body is not valid JSON"))
		return
	}

	req, err := s.buildAnalysisRequest(body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	run, err := s.service.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, SubmitRunResponse{
		RunID:  run.Manifest.RunID,
		Status: run.Status,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetEstimates(w http.ResponseWriter, r *http.Request) {
	estimates, err := s.store.GetEstimates(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, estimates)
}

// reportContentTypes maps render formats to their media type
var reportContentTypes = map[render.Format]string{
	render.FormatText:     "text/plain; charset=utf-8",
	render.FormatMarkdown: "text/markdown; charset=utf-8",
	render.FormatHTML:     "text/html; charset=utf-8",
	render.FormatCSV:      "text/csv",
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, errors.InvalidInput(err.Error()))
		return
	}

	rep, err := s.store.GetReport(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", reportContentTypes[format])
	if err := render.Render(w, rep, format); err != nil {
		s.logger.Error("[API] Failed to render report: %v", err)
	}
}

// buildAnalysisRequest turns a submit body into a service request: read the
// line list, apply the cohort filter, and overlay the body's settings on the
// configured defaults. The epoch recorded in the manifest is the one the
// filter actually used, which matters for epoch-1y.
func (s *Server) buildAnalysisRequest(body SubmitRunRequest) (app.AnalysisRequest, error) {
	path := body.LinelistPath
	if path == "" {
		path = s.cfg.Data.LinelistFile
	}
	if path == "" {
		return app.AnalysisRequest{}, errors.InvalidInput("no linelist_path given and no line list configured")
	}

	filter, err := linelist.ParseFilter(body.Filter)
	if err != nil {
		return app.AnalysisRequest{}, errors.InvalidInput(err.Error())
	}

	list, err := linelist.NewReader(path).Read()
	if err != nil {
		return app.AnalysisRequest{}, errors.WithCode(errors.CodeInvalidInput, err)
	}

	opts := linelist.Options{Epoch: s.cfg.Data.Epoch, ExactDates: body.ExactDates}
	subset, opts, err := linelist.Apply(filter, list, opts, s.cfg.Data.LocalRegion)
	if err != nil {
		return app.AnalysisRequest{}, errors.InvalidInput(err.Error())
	}

	cohort, summary, err := linelist.BuildCohort(subset, opts)
	if err != nil {
		return app.AnalysisRequest{}, errors.WithCode(errors.CodeInvalidInput, err)
	}
	s.logger.Info("[API] Cohort from %s (filter %s): %d accepted, %d rejected",
		path, filter, summary.Accepted, summary.RejectedCount())

	families := make([]dist.Family, 0, len(body.Families))
	for _, name := range body.Families {
		family, err := dist.ParseFamily(name)
		if err != nil {
			return app.AnalysisRequest{}, errors.InvalidInput(err.Error())
		}
		families = append(families, family)
	}

	var method results.Method
	if body.Method != "" && body.Method != "auto" {
		method, err = results.ParseMethod(body.Method)
		if err != nil {
			return app.AnalysisRequest{}, errors.InvalidInput(err.Error())
		}
	}

	cfg := s.cfg.Analysis
	if body.Replicates > 0 {
		cfg.Replicates = body.Replicates
	}
	if len(body.Quantiles) > 0 {
		cfg.Quantiles = body.Quantiles
	}
	if body.Seed != nil {
		cfg.Seed = *body.Seed
	}
	if body.MCMCIterations > 0 {
		cfg.MCMCIterations = body.MCMCIterations
	}
	if body.MCMCBurnIn > 0 {
		cfg.MCMCBurnInFraction = body.MCMCBurnIn
	}

	return app.AnalysisRequest{
		Cohort:   cohort,
		Families: families,
		Method:   method,
		Config:   cfg,
		Epoch:    opts.Epoch,
	}, nil
}
