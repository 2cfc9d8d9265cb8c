package agent

import (
	"context"
	"time"

	"broker-copilot/internal/shared/metrics"
	"broker-copilot/internal/shared/telemetry"
)

type instrumented struct {
	next Service
	mode string
}

// Instrument wraps svc so every call is logged and counted.
func Instrument(svc Service, mode string) Service {
	return &instrumented{next: svc, mode: mode}
}

func (i *instrumented) Analyze(ctx context.Context, req Request) (AnalyzeResponse, error) {
	start := time.Now()
	resp, err := i.next.Analyze(ctx, req)
	i.observe("analyze", start, err)
	return resp, err
}

func (i *instrumented) Recommend(ctx context.Context, req Request) (RecommendResponse, error) {
	start := time.Now()
	resp, err := i.next.Recommend(ctx, req)
	i.observe("recommend", start, err)
	return resp, err
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	status := statusOf(err)
	metrics.ObserveAgentRequest(op, status, elapsed.Seconds())

	fields := map[string]any{
		"op":          op,
		"mode":        i.mode,
		"status":      status,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err
		telemetry.Warn("agent.request_failed", fields)
		return
	}
	telemetry.Debug("agent.request", fields)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransport(err):
		return "transport_error"
	case IsProtocol(err):
		return "protocol_error"
	default:
		return "error"
	}
}
