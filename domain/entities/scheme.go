package entities

// Scheme is one welfare program record. Records are static reference data:
// queried, never mutated. A scheme translated into several languages appears
// once per language with the same ID prefix (e.g. "11-hi", "11-te").
type Scheme struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Eligibility string `json:"eligibility"`
	Benefits    string `json:"benefits"`
	// Region is an Indian state name, or "All" for central schemes.
	Region   string `json:"region"`
	URL      string `json:"url"`
	Language string `json:"language"`
}

// Central reports whether the scheme is a central (all-India) program.
func (s Scheme) Central() bool {
	return s.Region == "All"
}
