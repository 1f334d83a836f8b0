package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rentdir/bulk-importer/coordinator"
	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/progress"
)

type fakeService struct {
	calls   [][]importer.Row
	process func(call int, rows []importer.Row) (importer.BatchResult, error)
}

func (f *fakeService) ProcessBatch(_ context.Context, rows []importer.Row, _ importer.BatchOptions) (importer.BatchResult, error) {
	call := len(f.calls)
	f.calls = append(f.calls, rows)

	if f.process != nil {
		return f.process(call, rows)
	}

	return importer.BatchResult{Successful: len(rows)}, nil
}

func validResults(n int) []importer.ValidationResult {
	results := make([]importer.ValidationResult, 0, n)

	for i := 0; i < n; i++ {
		results = append(results, importer.ValidationResult{
			Row:   i + 1,
			Valid: true,
			Data: importer.Row{
				BusinessName: fmt.Sprintf("Business %d", i+1),
				Category:     "Equipment",
				Address:      fmt.Sprintf("%d Main St", i+1),
				City:         "Springfield",
				State:        "IL",
				Zip:          "62701",
			},
		})
	}

	return results
}

func Test_Run_BatchPartitioning(t *testing.T) {
	svc := &fakeService{}
	c := coordinator.New(svc, nil)

	report := c.Run(context.Background(), validResults(120), coordinator.Options{BatchSize: 50})

	require.Len(t, svc.calls, 3)
	require.Len(t, svc.calls[0], 50)
	require.Len(t, svc.calls[1], 50)
	require.Len(t, svc.calls[2], 20)
	require.Equal(t, 120, report.Successful+report.Failed)
	require.Equal(t, 120, report.Successful)
}

func Test_Run_SkipsInvalidRows(t *testing.T) {
	results := validResults(5)
	results[1].Valid = false
	results[3].Valid = false

	svc := &fakeService{}
	c := coordinator.New(svc, nil)

	report := c.Run(context.Background(), results, coordinator.Options{})

	require.Len(t, svc.calls, 1)
	require.Len(t, svc.calls[0], 3)
	require.Equal(t, 3, report.Successful)
}

func Test_Run_RemapsBatchRelativeErrors(t *testing.T) {
	results := validResults(60)

	svc := &fakeService{
		process: func(call int, rows []importer.Row) (importer.BatchResult, error) {
			if call == 1 {
				// second batch: its third row fails
				return importer.BatchResult{
					Successful: len(rows) - 1,
					Failed:     1,
					Errors:     []importer.RowError{{Row: 3, Error: "boom"}},
				}, nil
			}

			return importer.BatchResult{Successful: len(rows)}, nil
		},
	}

	c := coordinator.New(svc, nil)
	report := c.Run(context.Background(), results, coordinator.Options{BatchSize: 50})

	require.Equal(t, 59, report.Successful)
	require.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	// batch 2 row 3 is input row 53
	require.Equal(t, 53, report.Failures[0].Row)
	require.Equal(t, "boom", report.Failures[0].Error)
}

func Test_Run_TransportFailureAttribution(t *testing.T) {
	results := validResults(30)

	svc := &fakeService{
		process: func(call int, rows []importer.Row) (importer.BatchResult, error) {
			if call == 1 {
				return importer.BatchResult{}, errors.New("connection refused")
			}

			return importer.BatchResult{Successful: len(rows)}, nil
		},
	}

	c := coordinator.New(svc, nil)
	report := c.Run(context.Background(), results, coordinator.Options{BatchSize: 10})

	// the failed middle chunk does not stop the third chunk
	require.Len(t, svc.calls, 3)
	require.Equal(t, 20, report.Successful)
	require.Equal(t, 10, report.Failed)
	require.Len(t, report.Failures, 10)

	for i, f := range report.Failures {
		require.Equal(t, 11+i, f.Row)
		require.Equal(t, "connection refused", f.Error)
	}
}

func Test_Run_ProgressMonitor(t *testing.T) {
	svc := &fakeService{}
	c := coordinator.New(svc, nil)
	mon := progress.New()

	c.Run(context.Background(), validResults(120), coordinator.Options{BatchSize: 50, Monitor: mon})

	completed, total := mon.Progress()
	require.Equal(t, 3, completed)
	require.Equal(t, 3, total)
	require.InDelta(t, 1.0, mon.Fraction(), 0.0001)
}

func Test_Report_ErrorLogCSV(t *testing.T) {
	results := validResults(2)

	svc := &fakeService{
		process: func(_ int, rows []importer.Row) (importer.BatchResult, error) {
			return importer.BatchResult{
				Successful: len(rows) - 1,
				Failed:     1,
				Errors:     []importer.RowError{{Row: 2, Error: "Duplicate entry (skipped)"}},
			}, nil
		},
	}

	c := coordinator.New(svc, nil)
	report := c.Run(context.Background(), results, coordinator.Options{})

	log := string(report.ErrorLogCSV())
	lines := strings.Split(strings.TrimSpace(log), "\n")

	require.Len(t, lines, 2)
	require.Equal(t, "Row,Error,Business Name,Category,Address", lines[0])
	require.Contains(t, lines[1], "Duplicate entry (skipped)")
	require.Contains(t, lines[1], "Business 2")
}
