package importer

// Duplicate-handling policies for rows matching an existing listing.
const (
	DuplicateSkip   = "skip"
	DuplicateUpdate = "update"
)

// DuplicateSkippedMessage is the per-row failure recorded when the skip policy
// drops a duplicate. It counts under failed but is not a hard error.
const DuplicateSkippedMessage = "Duplicate entry (skipped)"

// BatchOptions travel with every batch submission.
type BatchOptions struct {
	SkipLogos         bool   `json:"skipLogos"`
	DuplicateHandling string `json:"duplicateHandling"`
}

// RowError attributes a failure to one row. Row is 1-based and relative to the
// submitted batch; the coordinator translates it back to the input position.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// BatchResult is the per-batch tally returned by the import service.
type BatchResult struct {
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Errors     []RowError `json:"errors"`
}
