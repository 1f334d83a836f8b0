package importer

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// Row is one candidate business listing parsed from bulk-import input.
// Field names match the recognized CSV headers / JSON keys one to one.
type Row struct {
	BusinessName string `json:"business_name"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Website      string `json:"website"`
	LogoURL      string `json:"logo_url"`
	HoursJSON    string `json:"hours_json"`
	ServicesJSON string `json:"services_json"`
}

// Headers returns the recognized column names in canonical order.
func Headers() []string {
	return []string{
		"business_name",
		"category",
		"description",
		"address",
		"city",
		"state",
		"zip",
		"phone",
		"email",
		"website",
		"logo_url",
		"hours_json",
		"services_json",
	}
}

func (r *Row) set(header, value string) {
	switch header {
	case "business_name":
		r.BusinessName = value
	case "category":
		r.Category = value
	case "description":
		r.Description = value
	case "address":
		r.Address = value
	case "city":
		r.City = value
	case "state":
		r.State = value
	case "zip":
		r.Zip = value
	case "phone":
		r.Phone = value
	case "email":
		r.Email = value
	case "website":
		r.Website = value
	case "logo_url":
		r.LogoURL = value
	case "hours_json":
		r.HoursJSON = value
	case "services_json":
		r.ServicesJSON = value
	}
}

// FullAddress returns the normalized single-line address used for duplicate matching.
func (r *Row) FullAddress() string {
	return strings.TrimSpace(r.Address) + ", " + strings.TrimSpace(r.City) + ", " +
		strings.TrimSpace(r.State) + " " + strings.TrimSpace(r.Zip)
}

// TemplateFileName is the suggested download name for the import template.
const TemplateFileName = "bulk_import_template.csv"

// Template returns a CSV import template: the header row plus one example row.
func Template() []byte {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	_ = w.Write(Headers())
	_ = w.Write([]string{
		"Acme Equipment Rentals",
		"Heavy Equipment",
		"Excavators and skid steers for rent",
		"123 Main St, Suite 4",
		"Springfield",
		"IL",
		"62701",
		"555-0147",
		"contact@acmerentals.example",
		"https://acmerentals.example",
		"https://acmerentals.example/logo.png",
		`{"monday":{"open":"08:00","close":"17:00","closed":false}}`,
		`[{"name":"Mini excavator","price":250,"unit":"per day"}]`,
	})
	w.Flush()

	return buf.Bytes()
}
