package results

import (
	"fmt"

	"incuba/domain/core"
)

// RunManifest records everything that determines an analysis run
// This is the "truth source" for replay - identical inputs give an identical fingerprint
type RunManifest struct {
	RunID       core.RunID      `json:"run_id"`
	CohortHash  core.CohortHash `json:"cohort_hash"`
	ConfigHash  core.ConfigHash `json:"config_hash"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Epoch       string          `json:"reference_epoch"`
	Fingerprint core.Hash       `json:"fingerprint"`
	CreatedAt   core.Timestamp  `json:"created_at"`
}

// NewRunManifest creates a run manifest with its determinism fingerprint
func NewRunManifest(runID core.RunID, cohortHash core.CohortHash, configHash core.ConfigHash,
	seed int64, codeVersion string, epoch core.Epoch) RunManifest {

	return RunManifest{
		RunID:       runID,
		CohortHash:  cohortHash,
		ConfigHash:  configHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Epoch:       epoch.String(),
		Fingerprint: computeFingerprint(cohortHash, configHash, seed, codeVersion),
		CreatedAt:   core.Now(),
	}
}

// computeFingerprint generates a deterministic hash from the determinism parameters
func computeFingerprint(cohortHash core.CohortHash, configHash core.ConfigHash,
	seed int64, codeVersion string) core.Hash {

	data := fmt.Sprintf("cohort:%s|config:%s|seed:%d|code:%s",
		cohortHash, configHash, seed, codeVersion)
	return core.NewHash([]byte(data))
}

// Validate checks if the manifest is complete
func (m RunManifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.CohortHash == "" {
		return core.NewValidationError("run_manifest", "cohort_hash cannot be empty")
	}
	if m.ConfigHash == "" {
		return core.NewValidationError("run_manifest", "config_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return nil
}
