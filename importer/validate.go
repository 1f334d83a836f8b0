package importer

import (
	"strings"

	"github.com/mcnijman/go-emailaddress"
)

// ValidationResult pairs a 1-based row number with the parsed row, its verdict
// and every rule it failed. Created once per row and never mutated afterwards.
type ValidationResult struct {
	Row    int      `json:"row"`
	Data   Row      `json:"data"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validate runs every rule against every row. Row numbers are assigned from
// position in the input, starting at 1, regardless of validity.
func Validate(rows []Row) []ValidationResult {
	results := make([]ValidationResult, 0, len(rows))

	for i, row := range rows {
		results = append(results, ValidateRow(row, i+1))
	}

	return results
}

// ValidateRow applies all field rules to a single row. Rules do not
// short-circuit: a row collects one message per failing rule.
func ValidateRow(row Row, num int) ValidationResult {
	var errs []string

	required := []struct {
		name  string
		value string
	}{
		{"business_name", row.BusinessName},
		{"category", row.Category},
		{"address", row.Address},
		{"city", row.City},
		{"state", row.State},
		{"zip", row.Zip},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			errs = append(errs, field.name+" is required")
		}
	}

	if email := strings.TrimSpace(row.Email); email != "" {
		if _, err := emailaddress.Parse(email); err != nil {
			errs = append(errs, "email has an invalid format")
		}
	}

	if website := strings.TrimSpace(row.Website); website != "" && !strings.HasPrefix(website, "http") {
		errs = append(errs, "website must start with http")
	}

	if strings.TrimSpace(row.HoursJSON) != "" {
		_, problems := ParseHours(row.HoursJSON)
		errs = append(errs, problems...)
	}

	if strings.TrimSpace(row.ServicesJSON) != "" {
		_, problems := ParseServices(row.ServicesJSON)
		errs = append(errs, problems...)
	}

	return ValidationResult{
		Row:    num,
		Data:   row,
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}
