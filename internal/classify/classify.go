// Package classify maps a free-text business description onto risk tags and
// broker followup questions.
package classify

import (
	"regexp"
	"sort"
	"strings"
)

// Risk tags produced by the default rules.
const (
	TagTrades       = "trades"
	TagMobileTools  = "mobileTools"
	TagProfessional = "professional"
	TagPublicFacing = "publicFacing"
	TagOnline       = "online"
)

// Predicate decides whether a rule fires for the lower-cased text.
type Predicate interface {
	Match(text string) bool
}

// AnyOf matches when any keyword is a substring of the text.
type AnyOf []string

func (a AnyOf) Match(text string) bool {
	for _, kw := range a {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Pattern matches a regular expression against the text.
type Pattern struct {
	Re *regexp.Regexp
}

func (p Pattern) Match(text string) bool {
	return p.Re != nil && p.Re.MatchString(text)
}

// Rule contributes tags and followups when its predicate fires.
type Rule struct {
	Name      string
	When      Predicate
	Tags      []string
	Followups []string
}

// Tags is a set of risk tags.
type Tags map[string]struct{}

func NewTags(tags ...string) Tags {
	t := Tags{}
	for _, tag := range tags {
		t.Add(tag)
	}
	return t
}

func (t Tags) Has(tag string) bool {
	_, ok := t[tag]
	return ok
}

func (t Tags) Add(tag string) {
	t[tag] = struct{}{}
}

func (t Tags) Remove(tag string) {
	delete(t, tag)
}

// Sorted returns the tags in lexical order. The result is never nil.
func (t Tags) Sorted() []string {
	out := make([]string, 0, len(t))
	for tag := range t {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Result is the outcome of classifying one description.
type Result struct {
	Tags      Tags
	Followups []string
}

// Classifier runs an ordered list of rules.
type Classifier struct {
	rules  []Rule
	dedupe bool
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithDedupe drops repeated followups, keeping the first occurrence.
func WithDedupe() Option {
	return func(c *Classifier) { c.dedupe = true }
}

// New builds a classifier over rules. Rule order decides followup order.
func New(rules []Rule, opts ...Option) *Classifier {
	c := &Classifier{rules: append([]Rule(nil), rules...)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default builds a classifier over DefaultRules.
func Default(opts ...Option) *Classifier {
	return New(DefaultRules(), opts...)
}

// Classify is pure: the same text always yields the same result.
func (c *Classifier) Classify(text string) Result {
	res := Result{Tags: Tags{}, Followups: []string{}}
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return res
	}

	seen := map[string]struct{}{}
	for _, r := range c.rules {
		if r.When == nil || !r.When.Match(lower) {
			continue
		}
		for _, tag := range r.Tags {
			res.Tags.Add(tag)
		}
		for _, q := range r.Followups {
			if c.dedupe {
				if _, dup := seen[q]; dup {
					continue
				}
				seen[q] = struct{}{}
			}
			res.Followups = append(res.Followups, q)
		}
	}
	return res
}

// DefaultRules returns the built-in keyword rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "trades",
			When:      AnyOf{"builder", "plumb", "electric", "garden", "fenc", "patio", "trade"},
			Tags:      []string{TagTrades, TagMobileTools},
			Followups: []string{"Any work at height or hot work?", "Do you use subcontractors?"},
		},
		{
			Name:      "professional",
			When:      AnyOf{"consult", "design", "spec", "advice"},
			Tags:      []string{TagProfessional},
			Followups: []string{"Do clients rely on your advice or designs?"},
		},
		{
			Name:      "public-facing",
			When:      AnyOf{"shop", "customer", "public"},
			Tags:      []string{TagPublicFacing},
			Followups: []string{"Is the public present on site?"},
		},
		{
			Name:      "online",
			When:      AnyOf{"online", "website", "data", "email"},
			Tags:      []string{TagOnline},
			Followups: []string{"Do you store customer data digitally?"},
		},
	}
}
