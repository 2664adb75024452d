package linelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const fixtureCSV = `id,region,fever,exposure_start,exposure_end,onset_start,onset_end
c1,wuhan,true,2019-12-10,2019-12-15,2019-12-20,2019-12-22
c2,beijing,false,,2019-12-12,2019-12-14,
c3,wuhan,true,,,2019-12-18,
c4,singapore,false,2019-12-25,2019-12-26,2019-12-20,2019-12-21
c5,wuhan,false,2019-12-05,2019-12-05,2019-12-09,2019-12-09
c6,wuhan,true,2019-12-01,2019-12-02,,
`

func writeFixtureCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linelist.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeFixtureXLSX(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "linelist.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadCSV(t *testing.T) {
	list, err := NewReader(writeFixtureCSV(t, fixtureCSV)).Read()
	require.NoError(t, err)
	require.Len(t, list.Rows, 6)

	c1 := list.Rows[0]
	assert.Equal(t, "c1", c1.ID)
	assert.Equal(t, "wuhan", c1.Region)
	assert.True(t, c1.Fever)
	require.NotNil(t, c1.ExposureStart)
	assert.Equal(t, "2019-12-10", c1.ExposureStart.Format(DateLayout))
	require.NotNil(t, c1.OnsetEnd)
	assert.Equal(t, "2019-12-22", c1.OnsetEnd.Format(DateLayout))

	// Missing cells stay nil so filling rules can tell absent from present.
	c2 := list.Rows[1]
	assert.Nil(t, c2.ExposureStart)
	assert.NotNil(t, c2.ExposureEnd)
	assert.Nil(t, c2.OnsetEnd)

	c6 := list.Rows[5]
	assert.Nil(t, c6.OnsetStart)
}

func TestReadXLSXMatchesCSV(t *testing.T) {
	xlsxPath := writeFixtureXLSX(t, [][]interface{}{
		{"id", "region", "fever", "exposure_start", "exposure_end", "onset_start", "onset_end"},
		{"c1", "wuhan", "true", "2019-12-10", "2019-12-15", "2019-12-20", "2019-12-22"},
		{"c2", "beijing", "false", "", "2019-12-12", "2019-12-14", ""},
	})
	csvPath := writeFixtureCSV(t, `id,region,fever,exposure_start,exposure_end,onset_start,onset_end
c1,wuhan,true,2019-12-10,2019-12-15,2019-12-20,2019-12-22
c2,beijing,false,,2019-12-12,2019-12-14,
`)

	fromXLSX, err := NewReader(xlsxPath).Read()
	require.NoError(t, err)
	fromCSV, err := NewReader(csvPath).Read()
	require.NoError(t, err)

	require.Len(t, fromXLSX.Rows, len(fromCSV.Rows))
	for i := range fromCSV.Rows {
		want, got := fromCSV.Rows[i], fromXLSX.Rows[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Region, got.Region)
		assert.Equal(t, want.Fever, got.Fever)
		assert.Equal(t, want.ExposureStart, got.ExposureStart)
		assert.Equal(t, want.ExposureEnd, got.ExposureEnd)
		assert.Equal(t, want.OnsetStart, got.OnsetStart)
		assert.Equal(t, want.OnsetEnd, got.OnsetEnd)
	}
}

func TestReadHeaderCaseInsensitive(t *testing.T) {
	list, err := NewReader(writeFixtureCSV(t, `ID,Region,Fever,Exposure_Start,Exposure_End,Onset_Start,Onset_End
c1,wuhan,yes,2019-12-10,2019-12-11,2019-12-14,2019-12-15
`)).Read()
	require.NoError(t, err)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "c1", list.Rows[0].ID)
	assert.True(t, list.Rows[0].Fever)
	assert.NotNil(t, list.Rows[0].OnsetStart)
}

func TestReadDropsBadDates(t *testing.T) {
	list, err := NewReader(writeFixtureCSV(t, `id,onset_start,onset_end
ok,2019-12-14,2019-12-15
bad,14/12/2019,2019-12-15
`)).Read()
	require.NoError(t, err)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "ok", list.Rows[0].ID)
}

func TestReadMissingOnsetColumn(t *testing.T) {
	_, err := NewReader(writeFixtureCSV(t, `id,exposure_start
c1,2019-12-10
`)).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "onset_start")
}

func TestReadMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "nope.csv")).Read()
	require.Error(t, err)
}

func TestReadSynthesizesRowIDs(t *testing.T) {
	list, err := NewReader(writeFixtureCSV(t, `region,onset_start
wuhan,2019-12-14
beijing,2019-12-15
`)).Read()
	require.NoError(t, err)
	require.Len(t, list.Rows, 2)
	assert.Equal(t, "row-1", list.Rows[0].ID)
	assert.Equal(t, "row-2", list.Rows[1].ID)
}
