package domain

// FeeType is one billable category a school charges for (tuition,
// transport, lab, ...). Fee types are managed elsewhere; this service
// only reads them to resolve plan components.
type FeeType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}
