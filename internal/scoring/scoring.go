// Package scoring ranks catalogue products against an analysis context and
// partitions them into relevance bands.
package scoring

import (
	"fmt"
	"sort"

	"broker-copilot/internal/catalogue"
	"broker-copilot/internal/classify"
	"broker-copilot/internal/intake"
)

// Band is a relevance tier.
type Band string

const (
	BandRecommended Band = "recommended"
	BandOften       Band = "often"
	BandNot         Band = "not"
)

// Thresholds split scores into bands. High must be greater than Mid.
type Thresholds struct {
	High int
	Mid  int
}

// DefaultThresholds are the reference cut-offs.
var DefaultThresholds = Thresholds{High: 60, Mid: 30}

// BandFor returns the band a score falls into. Boundaries are inclusive on the upper band.
func (t Thresholds) BandFor(score int) Band {
	switch {
	case score >= t.High:
		return BandRecommended
	case score >= t.Mid:
		return BandOften
	default:
		return BandNot
	}
}

// Scored is a product together with its score for one run.
type Scored struct {
	catalogue.Product
	Score   int
	Band    Band
	Reasons []string
	Faulted bool
}

// Fault describes a product whose scoring function failed.
type Fault struct {
	ProductKey string
	Cause      any
}

func (f Fault) Error() string {
	return fmt.Sprintf("scoring %s: %v", f.ProductKey, f.Cause)
}

// Engine scores a catalogue.
type Engine struct {
	Thresholds Thresholds
	// OnFault is called once per faulted product. It must not panic.
	OnFault func(Fault)
}

// NewEngine returns an engine with the given thresholds.
func NewEngine(t Thresholds) *Engine {
	return &Engine{Thresholds: t}
}

// Score evaluates every product and returns them by descending score. Ties keep
// catalogue order. A product whose evaluation panics scores 0 and the rest are
// still evaluated.
func (e *Engine) Score(cat *catalogue.Catalogue, ctx intake.Context, tags classify.Tags) []Scored {
	products := cat.Products()
	out := make([]Scored, 0, len(products))
	for _, p := range products {
		s, reasons, fault := evaluate(p, ctx, tags)
		item := Scored{Product: p, Score: s, Reasons: reasons}
		if fault != nil {
			item.Score = 0
			item.Reasons = nil
			item.Faulted = true
			if e.OnFault != nil {
				e.OnFault(*fault)
			}
		}
		item.Band = e.Thresholds.BandFor(item.Score)
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func evaluate(p catalogue.Product, ctx intake.Context, tags classify.Tags) (score int, reasons []string, fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &Fault{ProductKey: p.Key, Cause: r}
		}
	}()
	score, reasons = p.Evaluate(ctx, tags)
	return score, reasons, nil
}

// Groups holds ranked items split into bands, each in ranked order.
type Groups[T any] struct {
	Recommended []T
	Often       []T
	Not         []T
}

// Partition splits ranked items into bands in a single pass.
func Partition[T any](items []T, t Thresholds, score func(T) int) Groups[T] {
	var g Groups[T]
	for _, it := range items {
		switch t.BandFor(score(it)) {
		case BandRecommended:
			g.Recommended = append(g.Recommended, it)
		case BandOften:
			g.Often = append(g.Often, it)
		default:
			g.Not = append(g.Not, it)
		}
	}
	return g
}

// Group partitions scored products by their score.
func (e *Engine) Group(items []Scored) Groups[Scored] {
	return Partition(items, e.Thresholds, func(s Scored) int { return s.Score })
}
