package importer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON parses JSON input into rows. A top-level array maps one object per
// row; a single top-level object becomes a one-row slice. Anything else is a
// parse failure wrapping ErrParse.
func ParseJSON(text string) ([]Row, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrParse)
	}

	if strings.HasPrefix(trimmed, "[") {
		var rows []Row
		if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}

		return rows, nil
	}

	var row Row
	if err := json.Unmarshal([]byte(trimmed), &row); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return []Row{row}, nil
}
