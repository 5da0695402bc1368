// Package report exports analyzed calls to a spreadsheet for offline review.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/store"
)

const sheetName = "Calls"

var header = []string{
	"Call ID", "Filename", "Status", "Duration (s)",
	"Performance Score", "Call Reason", "Call Outcome",
	"Interest Level", "Conversion Likelihood", "Overall Confidence",
	"Action Items", "Warnings",
}

type Exporter struct {
	store *store.Store
	log   *logger.Logger
}

func NewExporter(st *store.Store, log *logger.Logger) *Exporter {
	return &Exporter{store: st, log: log}
}

// WriteXLSX renders every call (newest first) with its analysis, one row per
// call, and writes the workbook to w.
func (e *Exporter) WriteXLSX(ctx context.Context, w io.Writer) error {
	log := e.log.WithField("component", "report")

	calls, err := e.store.ListCalls(ctx, "", 1000, 0)
	if err != nil {
		return fmt.Errorf("list calls: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheetName)

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	for i, c := range calls {
		row := i + 2
		values := []any{
			c.ID, c.Filename, string(c.Status), c.DurationSeconds,
			nil, "", "", "", nil, nil, 0, 0,
		}

		res, err := e.store.GetAnalysis(ctx, c.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if res != nil {
			if res.PerformanceScore != nil {
				values[4] = *res.PerformanceScore
			}
			values[5] = string(res.CallReason)
			values[6] = string(res.CallOutcome)
			values[7] = string(res.InterestLevel)
			values[8] = res.ConversionLikelihood
			values[9] = res.OverallConfidence
			values[10] = len(res.ActionItems)
			values[11] = len(res.AnalysisWarnings)
		}

		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	log.WithField("calls", len(calls)).Info("report generated")
	return f.Write(w)
}
