package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	AnalyzePath   = "/broker-copilot/analyze"
	RecommendPath = "/broker-copilot/recommend"

	maxResponseBytes = 4 << 20
)

// Client calls a remote agent over HTTP. Each phase is a single request-reply
// with no retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client for baseURL. A zero timeout means 30s.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("AGENT_BASE_URL is required for the remote agent")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type wireClarifier struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Choices  []string `json:"choices"`
}

type wireAnalyze struct {
	NeedsClarifiers *bool           `json:"needsClarifiers"`
	Clarifiers      []wireClarifier `json:"clarifiers"`
	Extracted       *Extracted      `json:"extracted"`
	Followups       []string        `json:"followups"`
	Confidence      string          `json:"confidence"`
}

type wireRecommendation struct {
	Key          string   `json:"key"`
	Name         string   `json:"name"`
	Relevance    string   `json:"relevance"`
	WhyRelevant  string   `json:"whyRelevant"`
	WhatItCovers string   `json:"whatItCovers"`
	TypicalAsks  []string `json:"typicalAsks"`
	Notes        string   `json:"notes"`
	Confidence   *float64 `json:"confidence"`
	Score        *int     `json:"score"`
	Band         string   `json:"band"`
}

type wireRecommend struct {
	Recommendations []json.RawMessage `json:"recommendations"`
	Exclusions      []string          `json:"exclusions"`
	Confidence      string            `json:"confidence"`
}

// Analyze runs the analysis phase.
func (c *Client) Analyze(ctx context.Context, req Request) (AnalyzeResponse, error) {
	const op = "analyze"
	var parsed wireAnalyze
	if err := c.post(ctx, op, AnalyzePath, req, &parsed); err != nil {
		return AnalyzeResponse{}, err
	}
	if parsed.NeedsClarifiers == nil {
		return AnalyzeResponse{}, &ProtocolError{Op: op, Reason: "needsClarifiers is missing"}
	}

	out := AnalyzeResponse{
		NeedsClarifiers: *parsed.NeedsClarifiers,
		Clarifiers:      make([]Clarifier, 0, len(parsed.Clarifiers)),
		Extracted:       parsed.Extracted,
		Followups:       parsed.Followups,
		Confidence:      parsed.Confidence,
	}
	for i, wc := range parsed.Clarifiers {
		cl, err := normalizeClarifier(wc)
		if err != nil {
			return AnalyzeResponse{}, &ProtocolError{Op: op, Reason: fmt.Sprintf("clarifier %d: %s", i, err)}
		}
		out.Clarifiers = append(out.Clarifiers, cl)
	}
	return out, nil
}

// Recommend runs the recommendation phase.
func (c *Client) Recommend(ctx context.Context, req Request) (RecommendResponse, error) {
	const op = "recommend"
	var parsed wireRecommend
	if err := c.post(ctx, op, RecommendPath, req, &parsed); err != nil {
		return RecommendResponse{}, err
	}
	if parsed.Recommendations == nil {
		return RecommendResponse{}, &ProtocolError{Op: op, Reason: "recommendations is missing"}
	}

	out := RecommendResponse{
		Recommendations: make([]Recommendation, 0, len(parsed.Recommendations)),
		Exclusions:      parsed.Exclusions,
		Confidence:      parsed.Confidence,
	}
	for i, raw := range parsed.Recommendations {
		var wr wireRecommendation
		if err := json.Unmarshal(raw, &wr); err != nil {
			return RecommendResponse{}, &ProtocolError{Op: op, Reason: fmt.Sprintf("recommendation %d", i), Err: err}
		}
		if strings.TrimSpace(wr.Name) == "" {
			return RecommendResponse{}, &ProtocolError{Op: op, Reason: fmt.Sprintf("recommendation %d has no name", i)}
		}
		out.Recommendations = append(out.Recommendations, normalizeRecommendation(wr, raw))
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, op, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("agent %s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("agent %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, Status: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ProtocolError{Op: op, Reason: "body is not valid JSON", Err: err}
	}
	return nil
}

func normalizeClarifier(wc wireClarifier) (Clarifier, error) {
	id := strings.TrimSpace(wc.ID)
	if id == "" {
		return Clarifier{}, fmt.Errorf("id is missing")
	}
	cl := Clarifier{ID: id, Question: strings.TrimSpace(wc.Question), Type: ClarifierText}
	if strings.EqualFold(strings.TrimSpace(wc.Type), ClarifierChoice) && len(wc.Choices) > 0 {
		cl.Type = ClarifierChoice
		cl.Choices = append([]string(nil), wc.Choices...)
	}
	return cl, nil
}

func normalizeRecommendation(wr wireRecommendation, raw json.RawMessage) Recommendation {
	rec := Recommendation{
		Key:          strings.TrimSpace(wr.Key),
		Name:         strings.TrimSpace(wr.Name),
		Relevance:    normalizeRelevance(wr.Relevance),
		WhyRelevant:  wr.WhyRelevant,
		WhatItCovers: wr.WhatItCovers,
		TypicalAsks:  wr.TypicalAsks,
		Notes:        wr.Notes,
		Score:        wr.Score,
		Band:         wr.Band,
	}
	if rec.Key == "" {
		rec.Key = rec.Name
	}
	if rec.Key == "" {
		rec.Key = FallbackKey(raw)
	}
	if rec.TypicalAsks == nil {
		rec.TypicalAsks = []string{}
	}
	if wr.Confidence != nil {
		conf := clampConfidence(*wr.Confidence)
		rec.Confidence = &conf
	}
	return rec
}

func normalizeRelevance(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return RelevanceHigh
	case "low":
		return RelevanceLow
	default:
		return RelevanceMed
	}
}

// clampConfidence clamps before converting; out-of-range floats do not survive int().
func clampConfidence(v float64) int {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 100:
		return 100
	}
	return int(math.Round(v))
}
