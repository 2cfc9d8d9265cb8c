package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broker-copilot/internal/agent"
	"broker-copilot/internal/intake"
	"broker-copilot/internal/pack"
	"broker-copilot/internal/scoring"
)

// fakeAgent scripts analyze and recommend replies and records every call.
type fakeAgent struct {
	mu             sync.Mutex
	analyzeCalls   int32
	recommendCalls int32
	requests       []agent.Request

	analyze   func(req agent.Request) (agent.AnalyzeResponse, error)
	recommend func(req agent.Request) (agent.RecommendResponse, error)
}

func (f *fakeAgent) Analyze(_ context.Context, req agent.Request) (agent.AnalyzeResponse, error) {
	atomic.AddInt32(&f.analyzeCalls, 1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.analyze != nil {
		return f.analyze(req)
	}
	return agent.AnalyzeResponse{}, nil
}

func (f *fakeAgent) Recommend(_ context.Context, req agent.Request) (agent.RecommendResponse, error) {
	atomic.AddInt32(&f.recommendCalls, 1)
	if f.recommend != nil {
		return f.recommend(req)
	}
	return recommendations("pl", "el"), nil
}

func recommendations(keys ...string) agent.RecommendResponse {
	out := agent.RecommendResponse{}
	for _, k := range keys {
		out.Recommendations = append(out.Recommendations, agent.Recommendation{Key: k, Name: k, Relevance: agent.RelevanceHigh})
	}
	return out
}

func newSession(a agent.Service, clarifiers bool) *Session {
	return New("s-1", Deps{Agent: a, ClarifiersEnabled: clarifiers, Thresholds: scoring.DefaultThresholds})
}

func validInput() intake.Input {
	return intake.Input{BusinessDescription: "builder doing patios and fencing"}
}

func TestRunWithoutClarifiersGoesStraightToReady(t *testing.T) {
	fa := &fakeAgent{}
	s := newSession(fa, true)

	out, err := s.Run(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, RecommendationsReady, out.Kind)
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, "Idle->Ready", out.Transition)
	require.NotNil(t, out.Results)
	assert.Len(t, out.Results.Recommendations, 2)
	assert.Len(t, out.Results.Recommended, 2)
	assert.Equal(t, int32(1), fa.analyzeCalls)
	assert.Equal(t, int32(1), fa.recommendCalls)
}

func TestEmptyDescriptionIsRejectedWithoutCalls(t *testing.T) {
	fa := &fakeAgent{}
	s := newSession(fa, true)

	_, err := s.Run(context.Background(), intake.Input{BusinessDescription: "  "})
	require.Error(t, err)
	assert.True(t, intake.IsValidation(err))
	assert.Equal(t, Idle, s.State())
	assert.Zero(t, atomic.LoadInt32(&fa.analyzeCalls))
	assert.Zero(t, atomic.LoadInt32(&fa.recommendCalls))
}

func TestClarifierRoundTrip(t *testing.T) {
	fa := &fakeAgent{}
	fa.analyze = func(req agent.Request) (agent.AnalyzeResponse, error) {
		if req.ClarifierAnswers["height"] == "" {
			return agent.AnalyzeResponse{
				NeedsClarifiers: true,
				Clarifiers:      []agent.Clarifier{{ID: "height", Question: "Work at height?", Type: agent.ClarifierText}},
			}, nil
		}
		return agent.AnalyzeResponse{}, nil
	}
	s := newSession(fa, true)

	out, err := s.Run(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, ClarifiersPending, out.Kind)
	assert.Equal(t, AwaitingClarifiers, s.State())
	require.Len(t, out.Clarifiers, 1)
	assert.Zero(t, atomic.LoadInt32(&fa.recommendCalls))

	out, err = s.SubmitClarifierAnswers(context.Background(), map[string]string{"height": "yes"})
	require.NoError(t, err)
	assert.Equal(t, RecommendationsReady, out.Kind)
	assert.Equal(t, "AwaitingClarifiers->Ready", out.Transition)
	assert.Equal(t, int32(2), fa.analyzeCalls)
}

func TestClarifiersDisabledSkipsPause(t *testing.T) {
	fa := &fakeAgent{analyze: func(agent.Request) (agent.AnalyzeResponse, error) {
		return agent.AnalyzeResponse{NeedsClarifiers: true, Clarifiers: []agent.Clarifier{{ID: "x", Type: agent.ClarifierText}}}, nil
	}}
	s := newSession(fa, false)

	out, err := s.Run(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, RecommendationsReady, out.Kind)
}

func TestNeedsClarifiersWithoutQuestionsProceeds(t *testing.T) {
	fa := &fakeAgent{analyze: func(agent.Request) (agent.AnalyzeResponse, error) {
		return agent.AnalyzeResponse{NeedsClarifiers: true}, nil
	}}
	s := newSession(fa, true)

	out, err := s.Run(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, RecommendationsReady, out.Kind)
}

func TestAnswersAccumulateAcrossRuns(t *testing.T) {
	fa := &fakeAgent{}
	s := newSession(fa, true)

	in := validInput()
	in.ClarifierAnswers = map[string]string{"a": "1"}
	_, err := s.Run(context.Background(), in)
	require.NoError(t, err)

	in.ClarifierAnswers = map[string]string{"b": "2"}
	_, err = s.Run(context.Background(), in)
	require.NoError(t, err)

	fa.mu.Lock()
	last := fa.requests[len(fa.requests)-1]
	fa.mu.Unlock()
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, last.ClarifierAnswers)
}

func TestSubmitWithoutPendingClarifiers(t *testing.T) {
	s := newSession(&fakeAgent{}, true)
	_, err := s.SubmitClarifierAnswers(context.Background(), map[string]string{"x": "y"})
	assert.ErrorIs(t, err, ErrNoPendingClarifiers)
}

func TestRecommendFailureKeepsPicksAndResults(t *testing.T) {
	fa := &fakeAgent{}
	s := newSession(fa, true)

	_, err := s.Run(context.Background(), validInput())
	require.NoError(t, err)
	_, err = s.TogglePick("pl")
	require.NoError(t, err)

	fa.recommend = func(agent.Request) (agent.RecommendResponse, error) {
		return agent.RecommendResponse{}, &agent.TransportError{Op: "recommend", Status: 500, Body: "boom"}
	}
	out, err := s.Run(context.Background(), validInput())
	require.Error(t, err)
	assert.Equal(t, CycleFailed, out.Kind)
	assert.Equal(t, Failed, s.State())
	assert.Contains(t, out.Reason, "500")
	assert.Equal(t, 1, s.PickCount())
	require.NotNil(t, out.Results)
	assert.Len(t, out.Results.Recommendations, 2)

	fa.recommend = nil
	_, err = s.Run(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, 0, s.PickCount())
}

func TestRecommendServerErrorThroughHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == agent.AnalyzePath {
			_, _ = io.WriteString(w, `{"needsClarifiers": false, "clarifiers": []}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "internal")
	}))
	defer srv.Close()
	client, err := agent.NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	s := newSession(client, true)
	out, err := s.Run(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, agent.IsTransport(err))
	assert.Equal(t, Failed, s.State())
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, out.Reason, "500")
	assert.Equal(t, 0, s.PickCount())
}

func TestRunWhileInFlightIsRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fa := &fakeAgent{}
	fa.analyze = func(agent.Request) (agent.AnalyzeResponse, error) {
		close(entered)
		<-release
		return agent.AnalyzeResponse{}, nil
	}
	s := newSession(fa, true)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), validInput())
		done <- err
	}()
	<-entered

	_, err := s.Run(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, Analyzing, s.State())
	assert.ErrorIs(t, s.Reset(), ErrBusy)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fa.analyzeCalls))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fa.recommendCalls))
}

func TestRunWhileAwaitingClarifiersIsRejected(t *testing.T) {
	fa := &fakeAgent{analyze: func(agent.Request) (agent.AnalyzeResponse, error) {
		return agent.AnalyzeResponse{NeedsClarifiers: true, Clarifiers: []agent.Clarifier{{ID: "q"}}}, nil
	}}
	s := newSession(fa, true)
	_, err := s.Run(context.Background(), validInput())
	require.NoError(t, err)

	_, err = s.Run(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fa.analyzeCalls))

	require.NoError(t, s.Reset())
	assert.Equal(t, Idle, s.State())
}

func TestTogglePick(t *testing.T) {
	s := newSession(&fakeAgent{}, true)

	_, err := s.TogglePick("pl")
	assert.ErrorIs(t, err, ErrUnknownProduct)

	_, err = s.Run(context.Background(), validInput())
	require.NoError(t, err)

	first, err := s.TogglePick("pl")
	require.NoError(t, err)
	assert.Equal(t, pack.Added, first.Action)
	assert.Equal(t, 1, first.Count)

	second, err := s.TogglePick("pl")
	require.NoError(t, err)
	assert.Equal(t, pack.Removed, second.Action)
	assert.Equal(t, 0, second.Count)

	_, err = s.TogglePick("boats")
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestExportPackIsPure(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	s := New("s-2", Deps{Agent: &fakeAgent{}, Thresholds: scoring.DefaultThresholds, Now: func() time.Time { return now }})

	in := validInput()
	in.CustomerName = "Acme"
	_, err := s.Run(context.Background(), in)
	require.NoError(t, err)
	_, err = s.TogglePick("el")
	require.NoError(t, err)

	exp, name := s.ExportPack()
	assert.Equal(t, "quote-pack-1700000000000.json", name)
	assert.Equal(t, "Acme", exp.CustomerName)
	require.Len(t, exp.SelectedProducts, 1)
	assert.Equal(t, "el", exp.SelectedProducts[0].Key)
	assert.Equal(t, 1, s.PickCount())
	assert.Equal(t, Ready, s.State())
}

func TestGroupingFallsBackToRelevance(t *testing.T) {
	score := 45
	fa := &fakeAgent{recommend: func(agent.Request) (agent.RecommendResponse, error) {
		return agent.RecommendResponse{Recommendations: []agent.Recommendation{
			{Key: "a", Relevance: agent.RelevanceLow},
			{Key: "b", Relevance: agent.RelevanceHigh},
			{Key: "c", Relevance: agent.RelevanceMed},
			{Key: "d", Relevance: agent.RelevanceHigh, Score: &score},
		}}, nil
	}}
	s := newSession(fa, true)
	out, err := s.Run(context.Background(), validInput())
	require.NoError(t, err)

	keys := func(items []agent.Recommendation) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.Key)
		}
		return out
	}
	assert.Equal(t, []string{"b"}, keys(out.Results.Recommended))
	assert.Equal(t, []string{"c", "d"}, keys(out.Results.Often))
	assert.Equal(t, []string{"a"}, keys(out.Results.Not))
}

func TestAgentErrorOnAnalyze(t *testing.T) {
	fa := &fakeAgent{analyze: func(agent.Request) (agent.AnalyzeResponse, error) {
		return agent.AnalyzeResponse{}, &agent.ProtocolError{Op: "analyze", Reason: "needsClarifiers is missing"}
	}}
	s := newSession(fa, true)
	out, err := s.Run(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, agent.IsProtocol(err))
	assert.Equal(t, CycleFailed, out.Kind)
	assert.Zero(t, atomic.LoadInt32(&fa.recommendCalls))
	assert.False(t, errors.Is(err, ErrBusy))
}

func TestAgentPanicMovesToFailed(t *testing.T) {
	tests := []struct {
		name  string
		agent *fakeAgent
		want  string
	}{
		{
			name: "analyze",
			agent: &fakeAgent{analyze: func(agent.Request) (agent.AnalyzeResponse, error) {
				panic("nil analysis")
			}},
			want: "agent analyze panicked: nil analysis",
		},
		{
			name: "recommend",
			agent: &fakeAgent{recommend: func(agent.Request) (agent.RecommendResponse, error) {
				panic("nil recommendations")
			}},
			want: "agent recommend panicked: nil recommendations",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(tt.agent, true)

			out, err := s.Run(context.Background(), validInput())
			require.Error(t, err)
			assert.EqualError(t, err, tt.want)
			assert.Equal(t, CycleFailed, out.Kind)
			assert.Equal(t, Failed, s.State())
			assert.Equal(t, tt.want, s.View().LastError)

			// The session is usable again once the agent recovers.
			tt.agent.analyze = nil
			tt.agent.recommend = nil
			out, err = s.Run(context.Background(), validInput())
			require.NoError(t, err)
			assert.Equal(t, RecommendationsReady, out.Kind)
			assert.Equal(t, "Failed->Ready", out.Transition)

			require.NoError(t, s.Reset())
			assert.Equal(t, Idle, s.State())
		})
	}
}
