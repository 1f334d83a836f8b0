package importer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DayHours describes opening hours for a single day.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// Hours maps a lower-cased day-of-week name to that day's hours.
type Hours map[string]DayHours

var dayIndexes = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

var dayNames = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayNames returns the recognized day names ordered Sunday..Saturday.
func DayNames() []string {
	return dayNames
}

// DayIndex maps a day-of-week name (any case) to its 0=Sunday..6=Saturday
// index. The second return value reports whether the name was recognized.
func DayIndex(name string) (int, bool) {
	idx, ok := dayIndexes[strings.ToLower(strings.TrimSpace(name))]

	return idx, ok
}

// ParseHours decodes and structurally validates an hours_json payload. The
// returned problems list carries one message per malformed entry; entries that
// decode cleanly are still returned so callers can tolerate partial damage.
func ParseHours(raw string) (Hours, []string) {
	var decoded map[string]DayHours

	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, []string{fmt.Sprintf("hours_json is not valid JSON: %v", err)}
	}

	hours := make(Hours, len(decoded))

	var problems []string

	for day, dh := range decoded {
		if _, ok := DayIndex(day); !ok {
			problems = append(problems, fmt.Sprintf("hours_json: unknown day %q", day))
			continue
		}

		if !dh.Closed && dh.Open == "" && dh.Close == "" {
			problems = append(problems, fmt.Sprintf("hours_json: %s has neither hours nor a closed flag", strings.ToLower(day)))
			continue
		}

		hours[strings.ToLower(strings.TrimSpace(day))] = dh
	}

	return hours, problems
}
