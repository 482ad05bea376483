package complexity

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultStandardFields are the invoice fields a well-formed document is
// expected to carry.
var DefaultStandardFields = []string{
	"invoice_number",
	"invoice_date",
	"due_date",
	"vendor_name",
	"total_amount",
	"tax_amount",
	"subtotal",
}

// DefaultVendorPatterns match vendors whose invoice layouts are well known.
var DefaultVendorPatterns = []string{
	"amazon",
	"microsoft",
	"oracle",
	"salesforce",
	"adobe",
	"google",
	"ibm",
}

// Rules holds the keyword data the analyzer scores against.
type Rules struct {
	StandardFields []string `yaml:"standard_fields"`
	VendorPatterns []string `yaml:"vendor_patterns"`
}

// DefaultRules returns a copy of the built-in rules.
func DefaultRules() Rules {
	return Rules{
		StandardFields: append([]string(nil), DefaultStandardFields...),
		VendorPatterns: append([]string(nil), DefaultVendorPatterns...),
	}
}

// LoadRules reads a YAML rules file. Lists omitted from the file fall back
// to the defaults. An empty path returns DefaultRules.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "complexity: read rules %s", path)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, eris.Wrapf(err, "complexity: parse rules %s", path)
	}

	def := DefaultRules()
	if len(r.StandardFields) == 0 {
		r.StandardFields = def.StandardFields
	}
	if len(r.VendorPatterns) == 0 {
		r.VendorPatterns = def.VendorPatterns
	}
	return r, nil
}
