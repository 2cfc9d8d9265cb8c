package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broker-copilot/internal/classify"
	"broker-copilot/internal/intake"
	"broker-copilot/internal/scoring"
)

func TestLocalAnalyzeNeverPausesByDefault(t *testing.T) {
	l := NewLocal(scoring.DefaultThresholds)
	resp, err := l.Analyze(context.Background(), intake.Input{BusinessDescription: "builder doing patios and fencing"})
	require.NoError(t, err)

	assert.False(t, resp.NeedsClarifiers)
	assert.Empty(t, resp.Clarifiers)
	assert.Equal(t, []string{classify.TagMobileTools, classify.TagTrades}, resp.Extracted.Tags)
	assert.Len(t, resp.Followups, 2)
}

func TestLocalAnalyzeAsksUnansweredFollowups(t *testing.T) {
	l := NewLocal(scoring.DefaultThresholds)
	l.AskFollowups = true

	resp, err := l.Analyze(context.Background(), intake.Input{BusinessDescription: "plumber"})
	require.NoError(t, err)
	assert.True(t, resp.NeedsClarifiers)
	require.Len(t, resp.Clarifiers, 2)
	assert.Equal(t, "followup_1", resp.Clarifiers[0].ID)

	resp, err = l.Analyze(context.Background(), intake.Input{
		BusinessDescription: "plumber",
		ClarifierAnswers:    map[string]string{"followup_1": "no", "followup_2": "sometimes"},
	})
	require.NoError(t, err)
	assert.False(t, resp.NeedsClarifiers)
	assert.Empty(t, resp.Clarifiers)
}

func TestLocalAnalyzeValidates(t *testing.T) {
	_, err := NewLocal(scoring.DefaultThresholds).Analyze(context.Background(), intake.Input{})
	assert.True(t, intake.IsValidation(err))
}

func TestLocalRecommendRanksEveryProduct(t *testing.T) {
	l := NewLocal(scoring.DefaultThresholds)
	resp, err := l.Recommend(context.Background(), intake.Input{
		BusinessDescription: "builder doing patios and fencing",
		Concerns:            intake.ConcernInput{Selected: []string{"tools"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 5)

	top := resp.Recommendations[0]
	assert.Equal(t, "tools", top.Key)
	assert.Equal(t, 110, *top.Score)
	assert.Equal(t, 100, *top.Confidence)
	assert.Equal(t, RelevanceHigh, top.Relevance)
	assert.Equal(t, string(scoring.BandRecommended), top.Band)
	assert.Contains(t, top.WhyRelevant, "tools")
	assert.Equal(t, "Covers theft, loss or damage of tools and equipment.", top.WhatItCovers)

	assert.Contains(t, resp.Exclusions, "Professional Indemnity")
	assert.Equal(t, "High", resp.Confidence)
}

func TestLocalRecommendHonoursDismissedTags(t *testing.T) {
	l := NewLocal(scoring.DefaultThresholds)
	in := intake.Input{BusinessDescription: "online shop"}

	before, err := l.Recommend(context.Background(), in)
	require.NoError(t, err)
	in.DismissedTags = []string{classify.TagOnline}
	after, err := l.Recommend(context.Background(), in)
	require.NoError(t, err)

	scoreOf := func(resp RecommendResponse, key string) int {
		for _, r := range resp.Recommendations {
			if r.Key == key {
				return *r.Score
			}
		}
		t.Fatalf("missing %s", key)
		return 0
	}
	assert.Equal(t, 50, scoreOf(before, "cyber"))
	assert.Equal(t, 10, scoreOf(after, "cyber"))
}
