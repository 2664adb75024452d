package plotting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incuba/domain/cases"
	"incuba/domain/dist"
	"incuba/domain/results"
	"incuba/internal/testkit"
)

func fixtureCohort(t *testing.T) *cases.Cohort {
	t.Helper()
	config := testkit.DefaultLinelistConfig()
	config.Cases = 60
	cohort, err := testkit.NewLinelistGenerator(config).GenerateCohort()
	require.NoError(t, err)
	return cohort
}

func fixtureReport() *results.FitReport {
	return &results.FitReport{
		Results: []results.FitResult{
			{
				Family: dist.LogNormal,
				Fitted: dist.Distribution{Family: dist.LogNormal, P1: 1.6, P2: 0.5},
			},
			{
				Family: dist.Gamma,
				Fitted: dist.Distribution{Family: dist.Gamma, P1: 4.2, P2: 1.3},
			},
		},
	}
}

func TestEcdfStaircase(t *testing.T) {
	delays := []float64{5, 3, 8, 3}
	pts := ecdfPoints(delays)

	require.Len(t, pts, 2*len(delays)+1)
	assert.Equal(t, 0.0, pts[0].X)
	assert.Equal(t, 0.0, pts[0].Y)
	assert.Equal(t, 1.0, pts[len(pts)-1].Y)

	for i := 1; i < len(pts); i++ {
		assert.GreaterOrEqual(t, pts[i].X, pts[i-1].X, "X must be nondecreasing at %d", i)
		assert.GreaterOrEqual(t, pts[i].Y, pts[i-1].Y, "Y must be nondecreasing at %d", i)
	}
}

func TestCdfGrid(t *testing.T) {
	d := dist.Distribution{Family: dist.LogNormal, P1: 1.6, P2: 0.5}
	pts := cdfPoints(d)

	require.Len(t, pts, gridPoints)
	assert.Equal(t, 0.0, pts[0].X)
	assert.InDelta(t, upperTail, pts[len(pts)-1].Y, 1e-9)

	for i := 1; i < len(pts); i++ {
		assert.Greater(t, pts[i].X, pts[i-1].X, "grid must be strictly increasing at %d", i)
		assert.GreaterOrEqual(t, pts[i].Y, pts[i-1].Y, "CDF must be nondecreasing at %d", i)
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	written, err := WriteAll(fixtureReport(), fixtureCohort(t), dir)
	require.NoError(t, err)

	require.Len(t, written, 3)
	assert.Equal(t, filepath.Join(dir, "log-normal.png"), written[0])
	assert.Equal(t, filepath.Join(dir, "gamma.png"), written[1])
	assert.Equal(t, filepath.Join(dir, "combined.png"), written[2])

	for _, path := range written {
		data, err := os.ReadFile(path)
		require.NoError(t, err, "plot %s", path)
		require.Greater(t, len(data), 8, "plot %s", path)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4], "plot %s must be a PNG", path)
	}
}

func TestWriteAllEmptyReport(t *testing.T) {
	_, err := WriteAll(&results.FitReport{}, fixtureCohort(t), t.TempDir())
	assert.Error(t, err)
}
