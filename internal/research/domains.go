package research

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/models"
)

//go:embed domains.yaml
var defaultDomainsYAML []byte

// DomainRegistry classifies source domains into reference categories.
type DomainRegistry struct {
	Official     []string `yaml:"official"`
	FactChecking []string `yaml:"fact_checking"`
	Academic     []string `yaml:"academic"`
	Mainstream   []string `yaml:"mainstream"`
}

// ParseDomainRegistry decodes a registry from YAML.
func ParseDomainRegistry(raw []byte) (*DomainRegistry, error) {
	var reg DomainRegistry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("parse domain registry: %w", err)
	}
	for _, list := range []*[]string{&reg.Official, &reg.FactChecking, &reg.Academic, &reg.Mainstream} {
		out := (*list)[:0]
		for _, d := range *list {
			d = strings.ToLower(strings.TrimSpace(d))
			// path-scoped entries only classify by host
			if i := strings.IndexByte(d, '/'); i >= 0 {
				d = d[:i]
			}
			if d != "" {
				out = append(out, d)
			}
		}
		*list = out
	}
	return &reg, nil
}

// DefaultDomainRegistry returns the embedded registry.
func DefaultDomainRegistry() *DomainRegistry {
	reg, err := ParseDomainRegistry(defaultDomainsYAML)
	if err != nil {
		panic(err)
	}
	return reg
}

// IsOfficial reports whether rawURL belongs to a government or intergovernmental domain.
func (r *DomainRegistry) IsOfficial(rawURL string) bool {
	if r == nil {
		return false
	}
	return helpers.MatchesDomainSuffix(helpers.Domain(rawURL), r.Official)
}

// Classify returns the reference category implied by the URL's domain, or "" when unknown.
func (r *DomainRegistry) Classify(rawURL string) string {
	if r == nil {
		return ""
	}
	d := helpers.Domain(rawURL)
	switch {
	case d == "":
		return ""
	case helpers.MatchesDomainSuffix(d, r.Official):
		return "governance"
	case helpers.MatchesDomainSuffix(d, r.FactChecking):
		return "fact_checking"
	case helpers.MatchesDomainSuffix(d, r.Academic):
		return "academic"
	case helpers.MatchesDomainSuffix(d, r.Mainstream):
		return "mainstream"
	}
	return ""
}

// IsOfficialReference counts governance-tagged references as official too.
func (r *DomainRegistry) IsOfficialReference(ref models.Reference) bool {
	return ref.Category == "governance" || r.IsOfficial(ref.URL)
}
