package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pcos-assessment-server/internal/domain"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// DefaultSource names the embedded catalog in errors and logs.
const DefaultSource = "embedded:default_catalog.yaml"

// MaxRiskIncrease bounds a single risk factor's contribution to the range of
// the risk score.
const MaxRiskIncrease = domain.MaxRiskScore

// Format selects the catalog encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// rawCatalog mirrors the on-disk layout: phenotypes and risk factors keyed by id.
type rawCatalog struct {
	Version           string                   `json:"version" yaml:"version"`
	RotterdamCriteria []CriterionDefinition    `json:"rotterdam_criteria" yaml:"rotterdam_criteria"`
	Phenotypes        map[string]rawPhenotype  `json:"phenotypes" yaml:"phenotypes"`
	RiskFactors       map[string]rawRiskFactor `json:"risk_factors" yaml:"risk_factors"`
}

type rawPhenotype struct {
	Name          string   `json:"name" yaml:"name"`
	Criteria      []string `json:"criteria" yaml:"criteria"`
	Severity      string   `json:"severity" yaml:"severity"`
	MetabolicRisk string   `json:"metabolic_risk" yaml:"metabolic_risk"`
	Description   string   `json:"description" yaml:"description"`
}

type rawRiskFactor struct {
	RiskIncrease *int   `json:"risk_increase" yaml:"risk_increase"`
	Description  string `json:"description" yaml:"description"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML, FormatYAML, DefaultSource)
}

// Load reads a catalog file. The format follows the file extension; .json is JSON and
// everything else is YAML.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigurationError(path, "cannot read catalog", err)
	}
	return Parse(data, formatFor(path), path)
}

// LoadOrDefault loads path, or the built-in catalog when path is empty.
func LoadOrDefault(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	return Load(path)
}

// Parse decodes and validates a catalog document. Unknown fields are rejected.
func Parse(data []byte, format Format, source string) (*Catalog, error) {
	var raw rawCatalog
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, domain.NewConfigurationError(source, "malformed JSON catalog", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, domain.NewConfigurationError(source, "malformed YAML catalog", err)
		}
	default:
		return nil, domain.NewConfigurationError(source, fmt.Sprintf("unsupported catalog format %q", format), nil)
	}
	return build(&raw, source)
}

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

func build(raw *rawCatalog, source string) (*Catalog, error) {
	fail := func(format string, args ...any) (*Catalog, error) {
		return nil, domain.NewConfigurationError(source, fmt.Sprintf(format, args...), nil)
	}

	if strings.TrimSpace(raw.Version) == "" {
		return fail("missing version")
	}

	criteria, err := buildCriteria(raw.RotterdamCriteria)
	if err != nil {
		return fail("%v", err)
	}

	c := &Catalog{
		source:      source,
		version:     raw.Version,
		criteria:    criteria,
		phenotypes:  make(map[domain.Phenotype]PhenotypeDefinition, len(raw.Phenotypes)),
		masks:       make(map[domain.Phenotype]uint8, len(raw.Phenotypes)),
		riskFactors: make(map[domain.RiskFactor]RiskFactorDefinition, len(raw.RiskFactors)),
	}

	owners := make(map[uint8]domain.Phenotype)
	for key, entry := range raw.Phenotypes {
		def, err := buildPhenotype(key, entry)
		if err != nil {
			return fail("%v", err)
		}
		mask := criterionMask(def.Criteria)
		if other, dup := owners[mask]; dup {
			return fail("phenotypes %s and %s define the same criteria set", other, def.ID)
		}
		owners[mask] = def.ID
		c.phenotypes[def.ID] = def
		c.masks[def.ID] = mask
	}
	for _, id := range domain.Phenotypes {
		if _, ok := c.phenotypes[id]; !ok {
			return fail("missing phenotype %q", id)
		}
	}

	for key, entry := range raw.RiskFactors {
		f := domain.RiskFactor(key)
		if !f.IsValid() {
			return fail("unknown risk factor %q", key)
		}
		if entry.RiskIncrease == nil {
			return fail("risk factor %q has no risk_increase", key)
		}
		if *entry.RiskIncrease < 0 {
			return fail("risk factor %q has negative risk_increase %d", key, *entry.RiskIncrease)
		}
		if *entry.RiskIncrease > MaxRiskIncrease {
			return fail("risk factor %q has risk_increase %d above %d", key, *entry.RiskIncrease, MaxRiskIncrease)
		}
		c.riskFactors[f] = RiskFactorDefinition{
			Key:          f,
			RiskIncrease: *entry.RiskIncrease,
			Description:  entry.Description,
		}
	}
	for _, f := range domain.RiskFactors {
		if _, ok := c.riskFactors[f]; !ok {
			return fail("missing risk factor %q", f)
		}
	}

	return c, nil
}

func buildCriteria(defs []CriterionDefinition) ([]CriterionDefinition, error) {
	byKey := make(map[domain.Criterion]CriterionDefinition, len(defs))
	for _, def := range defs {
		if !def.Key.IsValid() {
			return nil, fmt.Errorf("unknown criterion %q", def.Key)
		}
		if _, dup := byKey[def.Key]; dup {
			return nil, fmt.Errorf("criterion %q defined twice", def.Key)
		}
		byKey[def.Key] = def
	}

	ordered := make([]CriterionDefinition, 0, len(domain.RotterdamCriteria))
	for _, key := range domain.RotterdamCriteria {
		def, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("missing criterion %q", key)
		}
		ordered = append(ordered, def)
	}
	return ordered, nil
}

func buildPhenotype(key string, entry rawPhenotype) (PhenotypeDefinition, error) {
	id := domain.Phenotype(key)
	if !id.IsValid() {
		return PhenotypeDefinition{}, fmt.Errorf("unknown phenotype %q", key)
	}
	if len(entry.Criteria) < 2 {
		return PhenotypeDefinition{}, fmt.Errorf("phenotype %s must name at least two criteria", key)
	}

	seen := make(map[domain.Criterion]bool, len(entry.Criteria))
	criteria := make([]domain.Criterion, 0, len(entry.Criteria))
	for _, name := range entry.Criteria {
		c := domain.Criterion(name)
		if !c.IsValid() {
			return PhenotypeDefinition{}, fmt.Errorf("phenotype %s references unknown criterion %q", key, name)
		}
		if seen[c] {
			return PhenotypeDefinition{}, fmt.Errorf("phenotype %s lists criterion %q twice", key, name)
		}
		seen[c] = true
		criteria = append(criteria, c)
	}

	severity := domain.Severity(entry.Severity)
	if !severity.IsValid() {
		return PhenotypeDefinition{}, fmt.Errorf("phenotype %s has invalid severity %q", key, entry.Severity)
	}
	metabolic := domain.MetabolicRisk(entry.MetabolicRisk)
	if !metabolic.IsValid() {
		return PhenotypeDefinition{}, fmt.Errorf("phenotype %s has invalid metabolic_risk %q", key, entry.MetabolicRisk)
	}

	return PhenotypeDefinition{
		ID:            id,
		Name:          entry.Name,
		Criteria:      criteria,
		Severity:      severity,
		MetabolicRisk: metabolic,
		Description:   entry.Description,
	}, nil
}
