package stats

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"coinevo/internal/model"
)

const (
	sheetParameters  = "parameters"
	sheetCensus      = "census"
	sheetGenerations = "generations"
)

// WriteWorkbook writes the run as an xlsx file with parameter, census and
// generation summary sheets.
func WriteWorkbook(path string, run model.RunRecord, generations []model.GenerationRecord) error {
	file := excelize.NewFile()
	defer file.Close()

	keys := make([]string, 0, len(run.Parameters))
	for k := range run.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	paramRows := [][]any{{"parameter", "value"}}
	for _, k := range keys {
		paramRows = append(paramRows, []any{k, run.Parameters[k]})
	}

	censusRows := [][]any{toAny(censusHeader)}
	appendCensus := func(generation string, stage model.CensusStage, entries []model.CensusEntry) {
		for _, entry := range entries {
			censusRows = append(censusRows, toAny(CensusRow(generation, stage, entry)))
		}
	}
	appendCensus("initial", model.StageInitial, run.Initial)
	for _, gen := range generations {
		label := strconv.Itoa(gen.Generation)
		appendCensus(label, model.StageAfterEvaluation, gen.AfterEvaluation)
		appendCensus(label, model.StageAfterCarryOver, gen.AfterCarryOver)
	}

	genRows := [][]any{{"generation", "number_of_networks", "maximum_fitness", "average_fitness", "stddev_fitness"}}
	for _, s := range SummarizeGenerations(generations) {
		genRows = append(genRows, []any{s.Generation, s.Networks, s.MaximumFitness, s.AverageFitness, s.StdDevFitness})
	}

	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{sheetParameters, paramRows},
		{sheetCensus, censusRows},
		{sheetGenerations, genRows},
	} {
		if _, err := file.NewSheet(sheet.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet.name, err)
		}
		if err := setRows(file, sheet.name, sheet.rows); err != nil {
			return err
		}
	}
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	index, err := file.GetSheetIndex(sheetParameters)
	if err != nil {
		return err
	}
	file.SetActiveSheet(index)
	return file.SaveAs(path)
}

func setRows(file *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("sheet %s cell %s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
