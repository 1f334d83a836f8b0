package coordinator

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/rentdir/bulk-importer/importer"
)

// RowFailure attributes a failure to a row of the original input. Row is the
// 1-based position in the parsed input, not within any batch.
type RowFailure struct {
	Row   int          `json:"row"`
	Error string       `json:"error"`
	Data  importer.Row `json:"data"`
}

// Report is the cumulative outcome of a run. It is a value type: merging a
// batch outcome produces a new Report, so intermediate states can be handed
// out without sharing mutable state.
type Report struct {
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Failures   []RowFailure `json:"failures,omitempty"`
}

func (r Report) merge(delta Report) Report {
	failures := make([]RowFailure, 0, len(r.Failures)+len(delta.Failures))
	failures = append(failures, r.Failures...)
	failures = append(failures, delta.Failures...)

	return Report{
		Successful: r.Successful + delta.Successful,
		Failed:     r.Failed + delta.Failed,
		Failures:   failures,
	}
}

// fromBatchResult remaps the service's batch-relative row numbers back to the
// original input positions carried by the chunk.
func fromBatchResult(chunk []importer.ValidationResult, result importer.BatchResult) Report {
	delta := Report{
		Successful: result.Successful,
		Failed:     result.Failed,
	}

	for _, re := range result.Errors {
		idx := re.Row - 1
		if idx < 0 || idx >= len(chunk) {
			continue
		}

		delta.Failures = append(delta.Failures, RowFailure{
			Row:   chunk[idx].Row,
			Error: re.Error,
			Data:  chunk[idx].Data,
		})
	}

	return delta
}

// transportFailure marks every row of a chunk failed with the same transport
// error. Individual rows were never reached, so no partial tally exists.
func transportFailure(chunk []importer.ValidationResult, err error) Report {
	delta := Report{Failed: len(chunk)}

	for _, res := range chunk {
		delta.Failures = append(delta.Failures, RowFailure{
			Row:   res.Row,
			Error: err.Error(),
			Data:  res.Data,
		})
	}

	return delta
}

// ErrorLogCSV renders the failed rows as a downloadable CSV log.
func (r Report) ErrorLogCSV() []byte {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"Row", "Error", "Business Name", "Category", "Address"})

	for _, f := range r.Failures {
		_ = w.Write([]string{
			strconv.Itoa(f.Row),
			f.Error,
			f.Data.BusinessName,
			f.Data.Category,
			f.Data.Address,
		})
	}

	w.Flush()

	return buf.Bytes()
}
