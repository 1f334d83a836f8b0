package importer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultPriceUnit is used when a service entry does not name a unit.
const DefaultPriceUnit = "per day"

// Service describes one offered service parsed from a services_json payload.
type Service struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Unit        string  `json:"unit,omitempty"`
}

// ParseServices decodes and structurally validates a services_json payload.
// Entries without a name are reported in problems and dropped; well-formed
// entries are returned with the default price unit applied.
func ParseServices(raw string) ([]Service, []string) {
	var decoded []Service

	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, []string{fmt.Sprintf("services_json is not valid JSON: %v", err)}
	}

	services := make([]Service, 0, len(decoded))

	var problems []string

	for i, svc := range decoded {
		if strings.TrimSpace(svc.Name) == "" {
			problems = append(problems, fmt.Sprintf("services_json: entry %d has no name", i+1))
			continue
		}

		if strings.TrimSpace(svc.Unit) == "" {
			svc.Unit = DefaultPriceUnit
		}

		services = append(services, svc)
	}

	return services, problems
}
