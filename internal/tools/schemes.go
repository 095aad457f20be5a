package tools

import (
	"strings"

	"github.com/jansahayak/agent/domain/entities"
)

// Catalogue is the static welfare-scheme lookup table. Each program appears
// once per translation, sharing a numeric ID prefix across languages.
type Catalogue struct {
	records []entities.Scheme
}

// NewCatalogue builds the shipped scheme table.
func NewCatalogue() *Catalogue {
	return &Catalogue{records: defaultSchemes()}
}

// Records returns the table in insertion order.
func (c *Catalogue) Records() []entities.Scheme {
	return c.records
}

// Search filters the table: case-insensitive substring match of category
// against name, description and eligibility; exact-or-"All" region match;
// exact language match. When the active language has no matching
// translation, the search reruns against fallbackLang so the model still
// gets something to work with.
func (c *Catalogue) Search(category, region, language, fallbackLang string) []entities.Scheme {
	out := c.search(category, region, language)
	if len(out) == 0 && fallbackLang != "" && fallbackLang != language {
		out = c.search(category, region, fallbackLang)
	}
	return out
}

func (c *Catalogue) search(category, region, language string) []entities.Scheme {
	query := strings.ToLower(category)
	regionLower := strings.ToLower(region)
	if regionLower == "" {
		regionLower = "all"
	}

	var out []entities.Scheme
	for _, s := range c.records {
		if language != "" && s.Language != language {
			continue
		}
		if !s.Central() && strings.ToLower(s.Region) != regionLower {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(s.Name), query) &&
			!strings.Contains(strings.ToLower(s.Description), query) &&
			!strings.Contains(strings.ToLower(s.Eligibility), query) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ByIDPrefix resolves a scheme by exact ID or by its numeric prefix, so a
// model that asks about "11" still reaches "11-hi".
func (c *Catalogue) ByIDPrefix(id string) (entities.Scheme, bool) {
	if id == "" {
		return entities.Scheme{}, false
	}
	for _, s := range c.records {
		if s.ID == id {
			return s, true
		}
	}
	for _, s := range c.records {
		if strings.HasPrefix(s.ID, id+"-") {
			return s, true
		}
	}
	return entities.Scheme{}, false
}

// ByName resolves a scheme by case-insensitive substring name match.
func (c *Catalogue) ByName(name string) (entities.Scheme, bool) {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return entities.Scheme{}, false
	}
	for _, s := range c.records {
		if strings.Contains(strings.ToLower(s.Name), q) {
			return s, true
		}
	}
	return entities.Scheme{}, false
}

type schemeSeed struct {
	id          string
	name        string
	description string
	eligibility string
	benefits    string
	region      string
	url         string
}

// defaultSchemes expands the program seeds into per-language records. The
// copy stays English in every variant; real translations are a content
// problem, not a code one, and slot into the same table shape.
func defaultSchemes() []entities.Scheme {
	seeds := []schemeSeed{
		{"1", "PM-KISAN", "Direct income support of ₹6,000 for farmers.",
			"Landholding farmers", "₹6,000 yearly", "All", "https://pmkisan.gov.in/"},
		{"2", "Sukanya Samriddhi Yojana", "Savings scheme for the girl child.",
			"Parents of girl child < 10", "High interest", "All", "https://www.nsiindia.gov.in/"},
		{"3", "PMAY-Urban", "Housing assistance for urban poor.",
			"EWS/LIG families", "Subsidized loans", "All", "https://pmay-urban.gov.in/"},
		{"4", "Ayushman Bharat", "World largest health insurance.",
			"Vulnerable families", "₹5 lakh cover", "All", "https://nha.gov.in/"},
		{"11", "YSR Rythu Bharosa", "Direct benefit for farmers in Andhra Pradesh.",
			"AP Farmers", "₹13,500 per year", "Andhra Pradesh", "https://ysrrythubharosa.ap.gov.in/"},
		{"12", "Amma Vodi", "Education support for mothers in AP.",
			"BPL families in AP with school-going kids", "₹15,000 yearly", "Andhra Pradesh",
			"https://jaganannaammavodi.ap.gov.in/"},
	}

	langs := []string{"hi", "te"}
	out := make([]entities.Scheme, 0, len(seeds)*len(langs))
	for _, lang := range langs {
		for _, seed := range seeds {
			out = append(out, entities.Scheme{
				ID:          seed.id + "-" + lang,
				Name:        seed.name,
				Description: seed.description,
				Eligibility: seed.eligibility,
				Benefits:    seed.benefits,
				Region:      seed.region,
				URL:         seed.url,
				Language:    lang,
			})
		}
	}
	return out
}
