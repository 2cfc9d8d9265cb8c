// Package agent defines the analyze/recommend contract a recommendation service
// satisfies, along with a remote HTTP client and the built-in rule engine.
package agent

import (
	"context"

	"broker-copilot/internal/intake"
)

// Request is the context-shaped payload sent to both phases.
type Request = intake.Input

// Clarifier kinds on the wire.
const (
	ClarifierText   = "text"
	ClarifierChoice = "choice"
)

// Relevance values.
const (
	RelevanceHigh = "High"
	RelevanceMed  = "Med"
	RelevanceLow  = "Low"
)

// Clarifier is a question the agent wants answered before recommending.
type Clarifier struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Choices  []string `json:"choices,omitempty"`
}

// Extracted carries what the analysis phase derived from the input.
type Extracted struct {
	Tags        []string `json:"tags,omitempty"`
	RiskSignals []string `json:"riskSignals,omitempty"`
}

// AnalyzeResponse is the result of the analyze phase.
type AnalyzeResponse struct {
	NeedsClarifiers bool        `json:"needsClarifiers"`
	Clarifiers      []Clarifier `json:"clarifiers"`
	Extracted       *Extracted  `json:"extracted,omitempty"`
	Followups       []string    `json:"followups,omitempty"`
	Confidence      string      `json:"confidence,omitempty"`
}

// Recommendation is one ranked product.
type Recommendation struct {
	Key          string   `json:"key"`
	Name         string   `json:"name"`
	Relevance    string   `json:"relevance"`
	WhyRelevant  string   `json:"whyRelevant"`
	WhatItCovers string   `json:"whatItCovers"`
	TypicalAsks  []string `json:"typicalAsks"`
	Notes        string   `json:"notes,omitempty"`
	Confidence   *int     `json:"confidence,omitempty"`
	Score        *int     `json:"score,omitempty"`
	Band         string   `json:"band,omitempty"`
}

// RecommendResponse is the result of the recommend phase.
type RecommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	Exclusions      []string         `json:"exclusions,omitempty"`
	Confidence      string           `json:"confidence,omitempty"`
}

// Service is a recommendation agent. Implementations must be safe for concurrent use.
type Service interface {
	Analyze(ctx context.Context, req Request) (AnalyzeResponse, error)
	Recommend(ctx context.Context, req Request) (RecommendResponse, error)
}
