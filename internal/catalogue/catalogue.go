// Package catalogue holds the insurance product definitions and their
// additive scoring rules.
package catalogue

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"broker-copilot/internal/classify"
	"broker-copilot/internal/intake"
)

// Condition is a predicate over the analysis context and the classifier tags.
type Condition interface {
	Holds(ctx intake.Context, tags classify.Tags) bool
}

// ConcernFlagged holds when the concern id is in the context.
type ConcernFlagged string

func (c ConcernFlagged) Holds(ctx intake.Context, _ classify.Tags) bool {
	return ctx.HasConcern(string(c))
}

// TagPresent holds when the classifier produced the tag.
type TagPresent string

func (t TagPresent) Holds(_ intake.Context, tags classify.Tags) bool {
	return tags.Has(string(t))
}

// FactSet holds when the fact was supplied and is not one of Except.
type FactSet struct {
	Name   string
	Except []string
}

func (f FactSet) Holds(ctx intake.Context, _ classify.Tags) bool {
	v, ok := ctx.Fact(f.Name)
	if !ok {
		return false
	}
	for _, ex := range f.Except {
		if strings.EqualFold(v, ex) {
			return false
		}
	}
	return true
}

// Increment adds Points when its condition holds.
type Increment struct {
	When   Condition
	Points int
	Reason string
}

// Product is one catalogue entry. Definitions are read-only once built.
type Product struct {
	Key       string
	Name      string
	Rationale string
	Questions []string
	Base      int

	Increments []Increment

	// ScoreFunc replaces the base-plus-increments rule when set.
	ScoreFunc func(ctx intake.Context, tags classify.Tags) int
}

// Evaluate scores the product and returns the reasons of every increment that fired.
// A ScoreFunc may panic; callers are expected to isolate that.
func (p Product) Evaluate(ctx intake.Context, tags classify.Tags) (int, []string) {
	if p.ScoreFunc != nil {
		return p.ScoreFunc(ctx, tags), nil
	}
	score := p.Base
	var reasons []string
	for _, inc := range p.Increments {
		if inc.When == nil || !inc.When.Holds(ctx, tags) {
			continue
		}
		score += inc.Points
		if inc.Reason != "" {
			reasons = append(reasons, inc.Reason)
		}
	}
	return score, reasons
}

// Catalogue is an ordered product list. Declaration order breaks score ties.
type Catalogue struct {
	products []Product
	byKey    map[string]int
}

// New validates products and builds a catalogue.
func New(products []Product) (*Catalogue, error) {
	c := &Catalogue{byKey: make(map[string]int, len(products))}
	for i, p := range products {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			return nil, fmt.Errorf("catalogue: product %d has no key", i)
		}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("catalogue: duplicate product key %q", key)
		}
		for _, inc := range p.Increments {
			if inc.Points <= 0 {
				return nil, fmt.Errorf("catalogue: product %q has a non-positive increment", key)
			}
		}
		p.Key = key
		c.byKey[key] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Products returns the entries in declaration order.
func (c *Catalogue) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Lookup returns the product with the given key.
func (c *Catalogue) Lookup(key string) (Product, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

func (c *Catalogue) Len() int { return len(c.products) }

// Summary is the public listing of a product.
type Summary struct {
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	Rationale string   `json:"rationale"`
	Questions []string `json:"typicalAsks"`
	Base      int      `json:"base"`
}

// Summaries lists every product in declaration order.
func (c *Catalogue) Summaries() []Summary {
	out := make([]Summary, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, Summary{
			Key:       p.Key,
			Name:      p.Name,
			Rationale: p.Rationale,
			Questions: append([]string(nil), p.Questions...),
			Base:      p.Base,
		})
	}
	return out
}

// Default returns the built-in commercial SME catalogue.
func Default() *Catalogue {
	c, err := New(defaultProducts())
	if err != nil {
		panic(err)
	}
	return c
}

func defaultProducts() []Product {
	return []Product{
		{
			Key:       "pl",
			Name:      "Public Liability",
			Rationale: "Covers injury or property damage to third parties.",
			Questions: []string{"Do you work on customer sites?", "Any hazardous activities or tools?"},
			Base:      20,
			Increments: []Increment{
				{When: ConcernFlagged(intake.ConcernPublic), Points: 30, Reason: "You flagged public injury or property damage."},
				{When: TagPresent(classify.TagTrades), Points: 30, Reason: "Trade work usually happens on customer sites."},
				{When: TagPresent(classify.TagPublicFacing), Points: 20, Reason: "Members of the public visit or are served."},
			},
		},
		{
			Key:       "el",
			Name:      "Employers' Liability",
			Rationale: "Legally required if you employ staff or labour-only workers.",
			Questions: []string{"Do you employ anyone, even part time?", "Any subcontractors or labour-only workers?"},
			Base:      10,
			Increments: []Increment{
				{When: FactSet{Name: intake.FactStaff, Except: []string{"0"}}, Points: 60, Reason: "The business has staff."},
				{When: ConcernFlagged(intake.ConcernEmployees), Points: 50, Reason: "Someone helps out, even casually."},
			},
		},
		{
			Key:       "pi",
			Name:      "Professional Indemnity",
			Rationale: "Covers claims arising from advice or design work.",
			Questions: []string{"Do customers rely on your advice or designs?", "Any contracts requiring PI?"},
			Base:      5,
			Increments: []Increment{
				{When: ConcernFlagged(intake.ConcernAdvice), Points: 60, Reason: "You give advice, designs or specifications."},
				{When: TagPresent(classify.TagProfessional), Points: 40, Reason: "The description reads as professional services."},
			},
		},
		{
			Key:       "tools",
			Name:      "Tools & Plant",
			Rationale: "Covers theft, loss or damage of tools and equipment.",
			Questions: []string{"Where are tools stored overnight?", "Approximate replacement value?"},
			Base:      10,
			Increments: []Increment{
				{When: ConcernFlagged(intake.ConcernTools), Points: 60, Reason: "You flagged tools and equipment theft."},
				{When: TagPresent(classify.TagMobileTools), Points: 40, Reason: "Tools travel between sites."},
			},
		},
		{
			Key:       "cyber",
			Name:      "Cyber & Data",
			Rationale: "Helps with data breaches, ransomware and IT disruption.",
			Questions: []string{"Do you store customer data digitally?", "Any online payments or systems?"},
			Base:      10,
			Increments: []Increment{
				{When: ConcernFlagged(intake.ConcernData), Points: 50, Reason: "You hold customer data or run online systems."},
				{When: TagPresent(classify.TagOnline), Points: 40, Reason: "The business trades or communicates online."},
			},
		},
	}
}

type fileCatalogue struct {
	Products []fileProduct `yaml:"products"`
}

type fileProduct struct {
	Key        string          `yaml:"key"`
	Name       string          `yaml:"name"`
	Rationale  string          `yaml:"rationale"`
	Questions  []string        `yaml:"questions"`
	Base       int             `yaml:"base"`
	Increments []fileIncrement `yaml:"increments"`
}

type fileIncrement struct {
	Concern string   `yaml:"concern"`
	Tag     string   `yaml:"tag"`
	Fact    string   `yaml:"fact"`
	Except  []string `yaml:"except"`
	Points  int      `yaml:"points"`
	Reason  string   `yaml:"reason"`
}

// Parse reads a YAML catalogue. Each increment names exactly one of concern, tag or fact.
func Parse(data []byte) (*Catalogue, error) {
	var doc fileCatalogue
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalogue: parse: %w", err)
	}
	if len(doc.Products) == 0 {
		return nil, fmt.Errorf("catalogue: no products defined")
	}

	products := make([]Product, 0, len(doc.Products))
	for _, fp := range doc.Products {
		p := Product{
			Key:       fp.Key,
			Name:      fp.Name,
			Rationale: fp.Rationale,
			Questions: fp.Questions,
			Base:      fp.Base,
		}
		for j, fi := range fp.Increments {
			cond, err := fi.condition()
			if err != nil {
				return nil, fmt.Errorf("catalogue: product %q increment %d: %w", fp.Key, j, err)
			}
			p.Increments = append(p.Increments, Increment{When: cond, Points: fi.Points, Reason: fi.Reason})
		}
		products = append(products, p)
	}
	return New(products)
}

func (fi fileIncrement) condition() (Condition, error) {
	var conds []Condition
	if fi.Concern != "" {
		conds = append(conds, ConcernFlagged(intake.NormalizeConcern(fi.Concern)))
	}
	if fi.Tag != "" {
		conds = append(conds, TagPresent(fi.Tag))
	}
	if fi.Fact != "" {
		conds = append(conds, FactSet{Name: fi.Fact, Except: fi.Except})
	}
	if len(conds) != 1 {
		return nil, fmt.Errorf("exactly one of concern, tag or fact is required")
	}
	return conds[0], nil
}

// LoadFile reads a YAML catalogue from disk. An empty path yields Default.
func LoadFile(path string) (*Catalogue, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: read %s: %w", path, err)
	}
	return Parse(data)
}
