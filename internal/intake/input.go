package intake

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultLine is the line of business assumed when none is given.
const DefaultLine = "Commercial (SME)"

// Structured fact names.
const (
	FactBusinessType = "businessType"
	FactTurnover     = "turnover"
	FactStaff        = "staff"
	FactPremises     = "premises"
	FactVehicles     = "vehicles"
)

// Input is what a broker submits for one run. It doubles as the wire payload
// sent to a remote agent.
type Input struct {
	Line                string            `json:"line"`
	CustomerName        string            `json:"customerName"`
	BusinessType        string            `json:"businessType"`
	TurnoverBand        string            `json:"turnoverBand"`
	StaffBand           string            `json:"staffBand"`
	Premises            string            `json:"premises"`
	Vehicles            string            `json:"vehicles"`
	BusinessDescription string            `json:"businessDescription"`
	Concerns            ConcernInput      `json:"concerns"`
	ClarifierAnswers    map[string]string `json:"clarifierAnswers"`
	DismissedTags       []string          `json:"dismissedTags,omitempty"`
}

// ConcernInput holds the ticked concerns and any free-text worries.
type ConcernInput struct {
	Selected []string `json:"selected"`
	FreeText string   `json:"freeText"`
}

type checked struct {
	BusinessDescription string            `validate:"required,max=4000"`
	CustomerName        string            `validate:"max=200"`
	ConcernText         string            `validate:"max=2000"`
	Answers             map[string]string `validate:"dive,keys,required,max=100,endkeys,max=2000"`
}

var validate = validator.New()

// Context is the normalized, immutable view of an Input used by classification and scoring.
type Context struct {
	line         string
	customerName string
	freeText     string
	concernText  string
	facts        map[string]string
	concerns     map[string]struct{}
	answers      map[string]string
	dismissed    map[string]struct{}
}

// Build validates in and produces a Context. Concern labels are mapped onto ids
// and concerns mentioned in the description or the free-text worries are added
// to the set.
func Build(in Input) (Context, error) {
	text := strings.TrimSpace(in.BusinessDescription)
	c := checked{
		BusinessDescription: text,
		CustomerName:        strings.TrimSpace(in.CustomerName),
		ConcernText:         strings.TrimSpace(in.Concerns.FreeText),
		Answers:             in.ClarifierAnswers,
	}
	if err := validate.Struct(c); err != nil {
		return Context{}, toValidationError(err)
	}

	ctx := Context{
		line:         strings.TrimSpace(in.Line),
		customerName: c.CustomerName,
		freeText:     text,
		concernText:  c.ConcernText,
		facts:        map[string]string{},
		concerns:     map[string]struct{}{},
		answers:      map[string]string{},
		dismissed:    map[string]struct{}{},
	}
	if ctx.line == "" {
		ctx.line = DefaultLine
	}

	for name, raw := range map[string]string{
		FactBusinessType: in.BusinessType,
		FactTurnover:     in.TurnoverBand,
		FactStaff:        in.StaffBand,
		FactPremises:     in.Premises,
		FactVehicles:     in.Vehicles,
	} {
		if v := strings.TrimSpace(raw); v != "" {
			ctx.facts[name] = v
		}
	}

	for _, raw := range in.Concerns.Selected {
		if id := NormalizeConcern(raw); id != "" {
			ctx.concerns[id] = struct{}{}
		}
	}
	for _, id := range ConcernsFromText(text + "\n" + ctx.concernText) {
		ctx.concerns[id] = struct{}{}
	}

	for k, v := range in.ClarifierAnswers {
		ctx.answers[k] = v
	}
	for _, tag := range in.DismissedTags {
		if t := strings.TrimSpace(tag); t != "" {
			ctx.dismissed[t] = struct{}{}
		}
	}
	return ctx, nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "input", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	field := map[string]string{
		"BusinessDescription": "businessDescription",
		"CustomerName":        "customerName",
		"ConcernText":         "concerns.freeText",
	}[fe.StructField()]
	if field == "" {
		field = "clarifierAnswers"
	}
	switch fe.Tag() {
	case "required":
		if field == "businessDescription" {
			return &ValidationError{Field: field, Reason: "is required"}
		}
		return &ValidationError{Field: field, Reason: "has an empty key"}
	case "max":
		return &ValidationError{Field: field, Reason: "is too long (max " + fe.Param() + ")"}
	default:
		return &ValidationError{Field: field, Reason: "is invalid"}
	}
}

func (c Context) Line() string         { return c.line }
func (c Context) CustomerName() string { return c.customerName }
func (c Context) FreeText() string     { return c.freeText }
func (c Context) ConcernText() string  { return c.concernText }

// Fact returns a structured fact and whether it was supplied.
func (c Context) Fact(name string) (string, bool) {
	v, ok := c.facts[name]
	return v, ok
}

// Facts returns a copy of the supplied facts.
func (c Context) Facts() map[string]string {
	return copyMap(c.facts)
}

func (c Context) HasConcern(id string) bool {
	_, ok := c.concerns[id]
	return ok
}

// Concerns returns the flagged concern ids, sorted.
func (c Context) Concerns() []string {
	return sortedKeys(c.concerns)
}

// Answers returns a copy of the clarifier answers.
func (c Context) Answers() map[string]string {
	return copyMap(c.answers)
}

func (c Context) Dismissed(tag string) bool {
	_, ok := c.dismissed[tag]
	return ok
}

// DismissedTags returns the tags the broker dismissed, sorted.
func (c Context) DismissedTags() []string {
	return sortedKeys(c.dismissed)
}

// WithAnswers returns a copy of c whose clarifier answers are merged with extra.
// Later answers win.
func (c Context) WithAnswers(extra map[string]string) Context {
	next := c
	next.answers = copyMap(c.answers)
	for k, v := range extra {
		next.answers[k] = v
	}
	return next
}

// Payload renders the context back into the wire shape.
func (c Context) Payload() Input {
	selected := c.Concerns()
	if selected == nil {
		selected = []string{}
	}
	return Input{
		Line:                c.line,
		CustomerName:        c.customerName,
		BusinessType:        c.facts[FactBusinessType],
		TurnoverBand:        c.facts[FactTurnover],
		StaffBand:           c.facts[FactStaff],
		Premises:            c.facts[FactPremises],
		Vehicles:            c.facts[FactVehicles],
		BusinessDescription: c.freeText,
		Concerns:            ConcernInput{Selected: selected, FreeText: c.concernText},
		ClarifierAnswers:    c.Answers(),
		DismissedTags:       c.DismissedTags(),
	}
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
