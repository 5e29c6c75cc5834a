package models

import "strings"

// StatementCategory is the fixed topic vocabulary for statements.
type StatementCategory string

const (
	CategoryPolitics      StatementCategory = "politics"
	CategoryEconomy       StatementCategory = "economy"
	CategoryEnvironment   StatementCategory = "environment"
	CategoryMilitary      StatementCategory = "military"
	CategoryHealthcare    StatementCategory = "healthcare"
	CategoryEducation     StatementCategory = "education"
	CategoryTechnology    StatementCategory = "technology"
	CategorySocial        StatementCategory = "social"
	CategoryInternational StatementCategory = "international"
	CategoryOther         StatementCategory = "other"
)

// StatementCategories lists the vocabulary in display order.
var StatementCategories = []StatementCategory{
	CategoryPolitics, CategoryEconomy, CategoryEnvironment, CategoryMilitary, CategoryHealthcare,
	CategoryEducation, CategoryTechnology, CategorySocial, CategoryInternational, CategoryOther,
}

// Valid reports whether c belongs to the vocabulary.
func (c StatementCategory) Valid() bool {
	for _, known := range StatementCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseStatementCategory folds s onto the vocabulary, returning "other" for anything unknown.
func ParseStatementCategory(s string) StatementCategory {
	c := StatementCategory(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return CategoryOther
}

var sourceCategoryAliases = map[string]string{
	"government":    "governance",
	"gov":           "governance",
	"official":      "governance",
	"governmental":  "governance",
	"federal":       "governance",
	"state":         "governance",
	"municipal":     "governance",
	"public":        "governance",
	"news":          "mainstream",
	"media":         "mainstream",
	"journalism":    "mainstream",
	"newspaper":     "mainstream",
	"broadcast":     "mainstream",
	"press":         "mainstream",
	"university":    "academic",
	"research":      "academic",
	"scientific":    "academic",
	"scholarly":     "academic",
	"education":     "academic",
	"institute":     "academic",
	"college":       "academic",
	"health":        "medical",
	"healthcare":    "medical",
	"hospital":      "medical",
	"clinic":        "medical",
	"financial":     "economic",
	"finance":       "economic",
	"banking":       "economic",
	"investment":    "economic",
	"business":      "economic",
	"commercial":    "economic",
	"corporate":     "economic",
	"law":           "legal",
	"court":         "legal",
	"judicial":      "legal",
	"attorney":      "legal",
	"tech":          "technology",
	"technological": "technology",
	"digital":       "technology",
	"software":      "technology",
	"computer":      "technology",
	"global":        "international",
	"world":         "international",
	"multilateral":  "international",
	"think_tank":    "policy",
	"thinktank":     "policy",
	"advocacy":      "policy",
	"fact_check":    "fact_checking",
	"factcheck":     "fact_checking",
	"verification":  "fact_checking",
}

// NormalizeSourceCategory maps a free-form source category onto the reference vocabulary.
func NormalizeSourceCategory(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return "other"
	}
	if mapped, ok := sourceCategoryAliases[v]; ok {
		return mapped
	}
	return v
}

var countryAliases = map[string]string{
	"usa":            "us",
	"united states":  "us",
	"america":        "us",
	"uk":             "gb",
	"britain":        "gb",
	"england":        "gb",
	"united kingdom": "gb",
	"germany":        "de",
	"deutschland":    "de",
	"france":         "fr",
	"canada":         "ca",
	"australia":      "au",
	"japan":          "jp",
	"china":          "cn",
	"india":          "in",
	"brazil":         "br",
	"russia":         "ru",
	"italy":          "it",
	"spain":          "es",
	"netherlands":    "nl",
	"switzerland":    "ch",
	"sweden":         "se",
	"norway":         "no",
	"denmark":        "dk",
	"finland":        "fi",
}

// NormalizeCountry maps country names and codes onto lowercase two-letter codes.
func NormalizeCountry(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "unknown", "null", "none":
		return "unknown"
	}
	if mapped, ok := countryAliases[v]; ok {
		return mapped
	}
	if len(v) > 2 {
		return v[:2]
	}
	return v
}
