package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"broker-copilot/internal/agent"
	"broker-copilot/internal/intake"
	"broker-copilot/internal/pack"
	"broker-copilot/internal/scoring"
	"broker-copilot/internal/shared/metrics"
	"broker-copilot/internal/shared/telemetry"
)

// Deps are shared by every session in a store.
type Deps struct {
	Agent             agent.Service
	ClarifiersEnabled bool
	Thresholds        scoring.Thresholds
	Now               func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Results are the recommendations of the last successful cycle.
type Results struct {
	Recommendations []agent.Recommendation `json:"recommendations"`
	Recommended     []agent.Recommendation `json:"recommended"`
	Often           []agent.Recommendation `json:"often"`
	Not             []agent.Recommendation `json:"not"`
	Exclusions      []string               `json:"exclusions,omitempty"`
	Confidence      string                 `json:"confidence,omitempty"`
}

// Outcome is what a run or a clarifier submission surfaces to the caller.
type Outcome struct {
	Kind       OutcomeKind            `json:"kind"`
	State      State                  `json:"state"`
	Clarifiers []agent.Clarifier      `json:"clarifiers,omitempty"`
	Analysis   *agent.AnalyzeResponse `json:"analysis,omitempty"`
	Results    *Results               `json:"results,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Transition string                 `json:"-"`
}

// PackState is the quote pack after a toggle.
type PackState struct {
	Action pack.Action            `json:"action,omitempty"`
	Count  int                    `json:"count"`
	Items  []agent.Recommendation `json:"items"`
}

// Session is safe for concurrent use. The mutex guards transitions only and is
// never held across an agent call.
type Session struct {
	ID        string
	CreatedAt time.Time

	deps Deps

	mu        sync.Mutex
	state     State
	input     intake.Input
	answers   map[string]string
	pending   []agent.Clarifier
	analysis  *agent.AnalyzeResponse
	results   *Results
	lastError string
	picks     *pack.Set
	updatedAt time.Time
}

// New returns an Idle session.
func New(id string, deps Deps) *Session {
	now := deps.now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		deps:      deps,
		state:     Idle,
		answers:   map[string]string{},
		picks:     pack.New(),
		updatedAt: now,
	}
}

// State returns the current orchestration state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run starts a new cycle. Earlier clarifier answers are merged under the new
// input's answers. A ValidationError or ErrBusy leaves the session untouched.
func (s *Session) Run(ctx context.Context, in intake.Input) (Outcome, error) {
	s.mu.Lock()
	if !s.state.acceptsRun() {
		s.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	merged := copyAnswers(s.answers)
	for k, v := range in.ClarifierAnswers {
		merged[k] = v
	}
	in.ClarifierAnswers = merged
	built, err := intake.Build(in)
	if err != nil {
		s.mu.Unlock()
		return Outcome{}, err
	}
	from := s.state
	s.answers = built.Answers()
	s.input = built.Payload()
	s.pending = nil
	s.setState(Analyzing)
	payload := s.input
	s.mu.Unlock()

	return s.cycle(ctx, from, payload)
}

// SubmitClarifierAnswers merges answers into the session and re-runs analysis.
func (s *Session) SubmitClarifierAnswers(ctx context.Context, answers map[string]string) (Outcome, error) {
	s.mu.Lock()
	if s.state != AwaitingClarifiers {
		state := s.state
		s.mu.Unlock()
		if state.inFlight() {
			return Outcome{}, ErrBusy
		}
		return Outcome{}, ErrNoPendingClarifiers
	}
	merged := copyAnswers(s.answers)
	for k, v := range answers {
		merged[k] = v
	}
	in := s.input
	in.ClarifierAnswers = merged
	built, err := intake.Build(in)
	if err != nil {
		s.mu.Unlock()
		return Outcome{}, err
	}
	from := s.state
	s.answers = built.Answers()
	s.input = built.Payload()
	s.pending = nil
	s.setState(Analyzing)
	payload := s.input
	s.mu.Unlock()

	return s.cycle(ctx, from, payload)
}

func (s *Session) cycle(ctx context.Context, from State, payload agent.Request) (Outcome, error) {
	analysis, err := s.analyze(ctx, payload)
	if err != nil {
		return s.fail(from, err)
	}

	s.mu.Lock()
	s.analysis = &analysis
	if s.deps.ClarifiersEnabled && analysis.NeedsClarifiers && len(analysis.Clarifiers) > 0 {
		s.pending = analysis.Clarifiers
		s.setState(AwaitingClarifiers)
		out := Outcome{
			Kind:       ClarifiersPending,
			State:      s.state,
			Clarifiers: append([]agent.Clarifier(nil), analysis.Clarifiers...),
			Analysis:   &analysis,
			Transition: transition(from, s.state),
		}
		s.mu.Unlock()
		metrics.IncRun(string(ClarifiersPending))
		return out, nil
	}
	s.setState(Recommending)
	s.mu.Unlock()

	rec, err := s.recommend(ctx, payload)
	if err != nil {
		return s.fail(from, err)
	}

	results := s.group(rec)
	s.mu.Lock()
	s.results = results
	s.picks.Clear()
	s.lastError = ""
	s.setState(Ready)
	out := Outcome{
		Kind:       RecommendationsReady,
		State:      s.state,
		Analysis:   s.analysis,
		Results:    results,
		Transition: transition(from, s.state),
	}
	s.mu.Unlock()

	metrics.IncRun(string(RecommendationsReady))
	telemetry.Info("session.ready", map[string]any{
		"session_id":      s.ID,
		"recommendations": len(results.Recommendations),
		"recommended":     len(results.Recommended),
	})
	return out, nil
}

// analyze and recommend turn an agent panic into an error so the session
// never stays in an in-flight state.
func (s *Session) analyze(ctx context.Context, payload agent.Request) (resp agent.AnalyzeResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent analyze panicked: %v", r)
		}
	}()
	return s.deps.Agent.Analyze(ctx, payload)
}

func (s *Session) recommend(ctx context.Context, payload agent.Request) (resp agent.RecommendResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent recommend panicked: %v", r)
		}
	}()
	return s.deps.Agent.Recommend(ctx, payload)
}

// fail moves to Failed and keeps earlier results and picks.
func (s *Session) fail(from State, err error) (Outcome, error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.setState(Failed)
	out := Outcome{
		Kind:       CycleFailed,
		State:      s.state,
		Reason:     s.lastError,
		Results:    s.results,
		Transition: transition(from, s.state),
	}
	s.mu.Unlock()

	metrics.IncRun(string(CycleFailed))
	telemetry.Warn("session.failed", map[string]any{"session_id": s.ID, "error": err})
	return out, err
}

// group bands recommendations. Items without a numeric score are banded by relevance.
func (s *Session) group(rec agent.RecommendResponse) *Results {
	t := s.deps.Thresholds
	g := scoring.Partition(rec.Recommendations, t, func(r agent.Recommendation) int {
		if r.Score != nil {
			return *r.Score
		}
		switch r.Relevance {
		case agent.RelevanceHigh:
			return t.High
		case agent.RelevanceLow:
			return t.Mid - 1
		default:
			return t.Mid
		}
	})
	return &Results{
		Recommendations: rec.Recommendations,
		Recommended:     nonNil(g.Recommended),
		Often:           nonNil(g.Often),
		Not:             nonNil(g.Not),
		Exclusions:      rec.Exclusions,
		Confidence:      rec.Confidence,
	}
}

// TogglePick adds or removes a product from the quote pack. A key must be in
// the current results unless it is already picked.
func (s *Session) TogglePick(key string) (PackState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snapshot agent.Recommendation
	if !s.picks.Has(key) {
		found := false
		if s.results != nil {
			for _, r := range s.results.Recommendations {
				if r.Key == key {
					snapshot, found = r, true
					break
				}
			}
		}
		if !found {
			return PackState{}, ErrUnknownProduct
		}
	}
	action := s.picks.Toggle(key, snapshot)
	s.updatedAt = s.deps.now()
	metrics.IncPackToggle(string(action))
	return PackState{Action: action, Count: s.picks.Len(), Items: s.picks.Values()}, nil
}

// ExportPack projects the quote pack and the session input. It does not mutate the session.
func (s *Session) ExportPack() (pack.Export, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.deps.now()
	return pack.BuildExport(s.picks, s.input, now), pack.FileName(now)
}

// PickCount returns the number of picked products.
func (s *Session) PickCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.picks.Len()
}

// Reset returns the session to Idle and forgets everything but its identity.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.inFlight() {
		return ErrBusy
	}
	s.input = intake.Input{}
	s.answers = map[string]string{}
	s.pending = nil
	s.analysis = nil
	s.results = nil
	s.lastError = ""
	s.picks.Clear()
	s.setState(Idle)
	return nil
}

// View is a read-only snapshot of a session.
type View struct {
	SessionID         string                 `json:"sessionId"`
	State             State                  `json:"state"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
	Input             *intake.Input          `json:"input,omitempty"`
	PendingClarifiers []agent.Clarifier      `json:"pendingClarifiers,omitempty"`
	Analysis          *agent.AnalyzeResponse `json:"analysis,omitempty"`
	Results           *Results               `json:"results,omitempty"`
	LastError         string                 `json:"lastError,omitempty"`
	Pack              PackState              `json:"pack"`
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID:         s.ID,
		State:             s.state,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.updatedAt,
		PendingClarifiers: append([]agent.Clarifier(nil), s.pending...),
		Analysis:          s.analysis,
		Results:           s.results,
		LastError:         s.lastError,
		Pack:              PackState{Count: s.picks.Len(), Items: s.picks.Values()},
	}
	if s.input.BusinessDescription != "" {
		in := s.input
		v.Input = &in
	}
	return v
}

func (s *Session) setState(next State) {
	s.state = next
	s.updatedAt = s.deps.now()
}

func transition(from, to State) string {
	return string(from) + "->" + string(to)
}

func copyAnswers(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func nonNil(items []agent.Recommendation) []agent.Recommendation {
	if items == nil {
		return []agent.Recommendation{}
	}
	return items
}
