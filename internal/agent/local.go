package agent

import (
	"context"
	"fmt"
	"strings"

	"broker-copilot/internal/catalogue"
	"broker-copilot/internal/classify"
	"broker-copilot/internal/intake"
	"broker-copilot/internal/scoring"
)

// Local answers the agent contract with the rule engine.
type Local struct {
	Catalogue  *catalogue.Catalogue
	Classifier *classify.Classifier
	Engine     *scoring.Engine

	// AskFollowups surfaces unanswered followups as free-text clarifiers.
	AskFollowups bool
}

// NewLocal returns a rule-engine agent over the default catalogue and rules.
func NewLocal(t scoring.Thresholds) *Local {
	return &Local{
		Catalogue:  catalogue.Default(),
		Classifier: classify.Default(),
		Engine:     scoring.NewEngine(t),
	}
}

// Analysis is the rule engine's view of one input.
type Analysis struct {
	Context   intake.Context
	Tags      classify.Tags
	Followups []string
}

// Analyse builds the context, classifies it and drops dismissed tags.
func (l *Local) Analyse(req Request) (Analysis, error) {
	ctx, err := intake.Build(req)
	if err != nil {
		return Analysis{}, err
	}
	res := l.Classifier.Classify(ctx.FreeText())
	for _, tag := range ctx.DismissedTags() {
		res.Tags.Remove(tag)
	}
	return Analysis{Context: ctx, Tags: res.Tags, Followups: res.Followups}, nil
}

// Analyze implements Service.
func (l *Local) Analyze(_ context.Context, req Request) (AnalyzeResponse, error) {
	a, err := l.Analyse(req)
	if err != nil {
		return AnalyzeResponse{}, err
	}

	out := AnalyzeResponse{
		Clarifiers: []Clarifier{},
		Extracted: &Extracted{
			Tags:        a.Tags.Sorted(),
			RiskSignals: a.Context.Concerns(),
		},
		Followups:  a.Followups,
		Confidence: "Medium",
	}
	if len(a.Tags) > 0 {
		out.Confidence = "High"
	}
	if l.AskFollowups {
		answers := a.Context.Answers()
		for i, q := range a.Followups {
			id := fmt.Sprintf("followup_%d", i+1)
			if strings.TrimSpace(answers[id]) != "" {
				continue
			}
			out.Clarifiers = append(out.Clarifiers, Clarifier{ID: id, Question: q, Type: ClarifierText})
		}
		out.NeedsClarifiers = len(out.Clarifiers) > 0
	}
	return out, nil
}

// Recommend implements Service. Every catalogue product is returned in ranked order.
func (l *Local) Recommend(_ context.Context, req Request) (RecommendResponse, error) {
	a, err := l.Analyse(req)
	if err != nil {
		return RecommendResponse{}, err
	}
	scored := l.Engine.Score(l.Catalogue, a.Context, a.Tags)

	out := RecommendResponse{Recommendations: make([]Recommendation, 0, len(scored))}
	anyHigh := false
	for _, s := range scored {
		rec := fromScored(s)
		if s.Band == scoring.BandRecommended {
			anyHigh = true
		}
		if s.Band == scoring.BandNot {
			out.Exclusions = append(out.Exclusions, s.Name)
		}
		out.Recommendations = append(out.Recommendations, rec)
	}
	out.Confidence = "Medium"
	if anyHigh {
		out.Confidence = "High"
	}
	return out, nil
}

func fromScored(s scoring.Scored) Recommendation {
	score := s.Score
	conf := score
	if conf > 100 {
		conf = 100
	}
	why := strings.Join(s.Reasons, " ")
	if why == "" {
		why = "Commonly considered for businesses of this type."
	}
	asks := append([]string{}, s.Questions...)
	rec := Recommendation{
		Key:          s.Key,
		Name:         s.Name,
		Relevance:    relevanceFor(s.Band),
		WhyRelevant:  why,
		WhatItCovers: s.Rationale,
		TypicalAsks:  asks,
		Confidence:   &conf,
		Score:        &score,
		Band:         string(s.Band),
	}
	if s.Faulted {
		rec.Notes = "Scoring for this product failed; treat the ranking as provisional."
	}
	return rec
}

func relevanceFor(b scoring.Band) string {
	switch b {
	case scoring.BandRecommended:
		return RelevanceHigh
	case scoring.BandOften:
		return RelevanceMed
	default:
		return RelevanceLow
	}
}
