package importer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParse marks input that could not be parsed at all. A parse failure aborts
// the whole validation pass; no partial row list is produced.
var ErrParse = errors.New("unable to parse import input")

// ParseCSV parses comma-separated input into rows. The first non-blank line is
// the header; header names are lower-cased, trimmed and matched against the
// recognized set. Unknown headers are ignored, recognized headers missing from
// a data line become empty strings.
//
// Fields are tokenized character by character with explicit quote tracking, so
// commas inside double-quoted fields (street addresses, JSON blobs) stay part
// of the field.
func ParseCSV(text string) ([]Row, error) {
	var lines []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		lines = append(lines, line)
	}

	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: need a header line and at least one data line", ErrParse)
	}

	recognized := make(map[string]struct{}, len(Headers()))
	for _, h := range Headers() {
		recognized[h] = struct{}{}
	}

	headers := splitLine(lines[0])
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}

	rows := make([]Row, 0, len(lines)-1)

	for _, line := range lines[1:] {
		values := splitLine(line)

		var row Row

		for i, h := range headers {
			if _, ok := recognized[h]; !ok {
				continue
			}

			if i < len(values) {
				row.set(h, values[i])
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// splitLine tokenizes one CSV line. A double quote toggles quoted state, a
// doubled quote inside a quoted field is a literal quote (JSON blobs need
// them), a comma separates fields only outside quotes.
func splitLine(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
	)

	runes := []rune(line)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '"':
			if quoted && i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++

				continue
			}

			quoted = !quoted
		case r == ',' && !quoted:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}

	fields = append(fields, current.String())

	return fields
}
