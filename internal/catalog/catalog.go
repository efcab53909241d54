// Package catalog loads and validates the Rotterdam criteria catalog: the criteria
// definitions, the phenotype table and the risk-factor point increments.
//
// A Catalog is immutable once loaded and safe for concurrent use. Every load path
// validates the whole document and returns a *domain.ConfigurationError on the first
// problem, so a process never starts with partial risk increments or phenotypes.
package catalog

import (
	"fmt"
	"slices"
	"sort"

	"github.com/pcos-assessment-server/internal/domain"
)

// CriterionDefinition describes one Rotterdam criterion.
type CriterionDefinition struct {
	Key         domain.Criterion `json:"key" yaml:"key"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
}

// PhenotypeDefinition maps an exact set of criteria to a phenotype.
type PhenotypeDefinition struct {
	ID            domain.Phenotype     `json:"id"`
	Name          string               `json:"name"`
	Criteria      []domain.Criterion   `json:"criteria"`
	Severity      domain.Severity      `json:"severity"`
	MetabolicRisk domain.MetabolicRisk `json:"metabolic_risk"`
	Description   string               `json:"description,omitempty"`
}

// RiskFactorDefinition assigns risk score points to a risk factor.
type RiskFactorDefinition struct {
	Key          domain.RiskFactor `json:"key"`
	RiskIncrease int               `json:"risk_increase"`
	Description  string            `json:"description,omitempty"`
}

// Document is the ordered, read-only view of a catalog used by API responses.
type Document struct {
	Version     string                 `json:"version"`
	Criteria    []CriterionDefinition  `json:"rotterdam_criteria"`
	Phenotypes  []PhenotypeDefinition  `json:"phenotypes"`
	RiskFactors []RiskFactorDefinition `json:"risk_factors"`
}

// Catalog is the validated criteria catalog.
type Catalog struct {
	source      string
	version     string
	criteria    []CriterionDefinition
	phenotypes  map[domain.Phenotype]PhenotypeDefinition
	masks       map[domain.Phenotype]uint8
	riskFactors map[domain.RiskFactor]RiskFactorDefinition
}

// criterionMask folds a criteria list into a bit set indexed by evaluation order.
func criterionMask(criteria []domain.Criterion) uint8 {
	var mask uint8
	for _, c := range criteria {
		if i := slices.Index(domain.RotterdamCriteria, c); i >= 0 {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// Source returns where the catalog was loaded from.
func (c *Catalog) Source() string {
	return c.source
}

// Version returns the catalog version string.
func (c *Catalog) Version() string {
	return c.version
}

// Criteria returns the criteria definitions in evaluation order.
func (c *Catalog) Criteria() []CriterionDefinition {
	return slices.Clone(c.criteria)
}

// Phenotype returns the definition for id.
func (c *Catalog) Phenotype(id domain.Phenotype) (PhenotypeDefinition, bool) {
	def, ok := c.phenotypes[id]
	if !ok {
		return PhenotypeDefinition{}, false
	}
	def.Criteria = slices.Clone(def.Criteria)
	return def, true
}

// Phenotypes returns all phenotype definitions ordered by id.
func (c *Catalog) Phenotypes() []PhenotypeDefinition {
	out := make([]PhenotypeDefinition, 0, len(c.phenotypes))
	for _, id := range c.phenotypeIDs() {
		def, _ := c.Phenotype(id)
		out = append(out, def)
	}
	return out
}

// MatchPhenotype returns the phenotype whose criteria set equals criteria exactly.
// Subsets and supersets never match.
func (c *Catalog) MatchPhenotype(criteria []domain.Criterion) (domain.Phenotype, bool) {
	mask := criterionMask(criteria)
	for _, id := range c.phenotypeIDs() {
		if c.masks[id] == mask {
			return id, true
		}
	}
	return "", false
}

// RiskIncrease returns the points for f. Every risk factor is present after
// validation, so unknown keys only arise from programming errors.
func (c *Catalog) RiskIncrease(f domain.RiskFactor) int {
	def, ok := c.riskFactors[f]
	if !ok {
		panic(fmt.Sprintf("catalog: risk factor %q not defined", f))
	}
	return def.RiskIncrease
}

// RiskFactors returns the risk factor definitions in declaration order.
func (c *Catalog) RiskFactors() []RiskFactorDefinition {
	out := make([]RiskFactorDefinition, 0, len(domain.RiskFactors))
	for _, f := range domain.RiskFactors {
		out = append(out, c.riskFactors[f])
	}
	return out
}

// Document returns an ordered copy of the catalog contents.
func (c *Catalog) Document() Document {
	return Document{
		Version:     c.version,
		Criteria:    c.Criteria(),
		Phenotypes:  c.Phenotypes(),
		RiskFactors: c.RiskFactors(),
	}
}

func (c *Catalog) phenotypeIDs() []domain.Phenotype {
	ids := make([]domain.Phenotype, 0, len(c.phenotypes))
	for id := range c.phenotypes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
