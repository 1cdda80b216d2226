package stats

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), WorkbookFile)
	run, gens := sampleRun()
	require.NoError(t, WriteWorkbook(path, run, gens))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetParameters, sheetCensus, sheetGenerations}, f.GetSheetList())

	rows, err := f.GetRows(sheetCensus)
	require.NoError(t, err)
	require.Len(t, rows, 13)
	assert.Equal(t, "serial_number", rows[0][3])

	value, err := f.GetCellValue(sheetGenerations, "D3")
	require.NoError(t, err)
	assert.Equal(t, "4", value)

	value, err = f.GetCellValue(sheetParameters, "A2")
	require.NoError(t, err)
	assert.Equal(t, "game", value)
}
