// Package pack tracks the products a broker has picked for quotation.
package pack

import (
	"fmt"
	"time"

	"broker-copilot/internal/agent"
	"broker-copilot/internal/intake"
)

// Action reports what a toggle did.
type Action string

const (
	Added   Action = "added"
	Removed Action = "removed"
)

// Set is an insertion-ordered selection keyed by product key. It is not safe
// for concurrent use; the owning session serialises access.
type Set struct {
	order []string
	items map[string]agent.Recommendation
}

// New returns an empty set.
func New() *Set {
	return &Set{items: map[string]agent.Recommendation{}}
}

// Toggle inserts the snapshot when key is absent and removes it otherwise.
func (s *Set) Toggle(key string, snapshot agent.Recommendation) Action {
	if _, ok := s.items[key]; ok {
		delete(s.items, key)
		for i, k := range s.order {
			if k == key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return Removed
	}
	s.items[key] = snapshot
	s.order = append(s.order, key)
	return Added
}

func (s *Set) Has(key string) bool {
	_, ok := s.items[key]
	return ok
}

func (s *Set) Len() int { return len(s.order) }

// Values returns the snapshots in insertion order.
func (s *Set) Values() []agent.Recommendation {
	out := make([]agent.Recommendation, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// Keys returns the picked keys in insertion order.
func (s *Set) Keys() []string {
	return append([]string{}, s.order...)
}

func (s *Set) Clear() {
	s.order = nil
	s.items = map[string]agent.Recommendation{}
}

// Concerns is the concern section of an export.
type Concerns struct {
	Selected []string `json:"selected"`
	FreeText string   `json:"freeText"`
}

// Export is the serialisable snapshot of a quote pack.
type Export struct {
	CreatedAt           time.Time              `json:"createdAt"`
	Line                string                 `json:"line"`
	CustomerName        string                 `json:"customerName"`
	BusinessType        string                 `json:"businessType,omitempty"`
	TurnoverBand        string                 `json:"turnoverBand,omitempty"`
	StaffBand           string                 `json:"staffBand,omitempty"`
	Premises            string                 `json:"premises,omitempty"`
	Vehicles            string                 `json:"vehicles,omitempty"`
	BusinessDescription string                 `json:"businessDescription"`
	Concerns            Concerns               `json:"concerns"`
	ClarifierAnswers    map[string]string      `json:"clarifierAnswers"`
	SelectedProducts    []agent.Recommendation `json:"selectedProducts"`
}

// BuildExport projects the set and the session input into an Export. It does not mutate s.
func BuildExport(s *Set, in intake.Input, now time.Time) Export {
	answers := make(map[string]string, len(in.ClarifierAnswers))
	for k, v := range in.ClarifierAnswers {
		answers[k] = v
	}
	selected := append([]string{}, in.Concerns.Selected...)
	line := in.Line
	if line == "" {
		line = intake.DefaultLine
	}
	return Export{
		CreatedAt:           now.UTC(),
		Line:                line,
		CustomerName:        in.CustomerName,
		BusinessType:        in.BusinessType,
		TurnoverBand:        in.TurnoverBand,
		StaffBand:           in.StaffBand,
		Premises:            in.Premises,
		Vehicles:            in.Vehicles,
		BusinessDescription: in.BusinessDescription,
		Concerns:            Concerns{Selected: selected, FreeText: in.Concerns.FreeText},
		ClarifierAnswers:    answers,
		SelectedProducts:    s.Values(),
	}
}

// FileName is the download name for an export created at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("quote-pack-%d.json", t.UnixMilli())
}
