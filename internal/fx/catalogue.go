package fx

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"
)

// CatalogueEntry describes one currency known to the ledger.
type CatalogueEntry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Catalogue is the list of currencies reports always include, even when no
// account or invoice uses them yet.
type Catalogue struct {
	Currencies []CatalogueEntry `yaml:"currencies"`
}

// LoadCatalogue reads a YAML currency catalogue. An empty path yields an
// empty catalogue.
func LoadCatalogue(path string) (Catalogue, error) {
	var cat Catalogue
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cat, fmt.Errorf("fx: read catalogue: %w", err)
	}
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return cat, fmt.Errorf("fx: parse catalogue: %w", err)
	}
	for i, entry := range cat.Currencies {
		code := normalizeCode(entry.Code)
		if _, err := currency.ParseISO(code); err != nil {
			return Catalogue{}, fmt.Errorf("fx: catalogue entry %d: %q is not an ISO currency", i, entry.Code)
		}
		cat.Currencies[i].Code = code
	}
	return cat, nil
}

// Codes returns the sorted, de-duplicated currency codes.
func (c Catalogue) Codes() []string {
	seen := make(map[string]struct{}, len(c.Currencies))
	out := make([]string, 0, len(c.Currencies))
	for _, entry := range c.Currencies {
		if _, ok := seen[entry.Code]; ok {
			continue
		}
		seen[entry.Code] = struct{}{}
		out = append(out, entry.Code)
	}
	sort.Strings(out)
	return out
}
