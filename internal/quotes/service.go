package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"broker-copilot/internal/pack"
	"broker-copilot/internal/shared/metrics"
	"broker-copilot/internal/shared/storage/object"
	"broker-copilot/internal/shared/telemetry"
	"broker-copilot/internal/shared/util"
)

// Service hands quote packs off for formal quotation.
type Service struct {
	Repo  Repo
	Store object.Store
	Now   func() time.Time
	NewID func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// Start archives the export and records a quote request. The pack must hold
// at least one product.
func (s *Service) Start(ctx context.Context, sessionID string, exp pack.Export, fileName string) (Request, error) {
	if len(exp.SelectedProducts) == 0 {
		metrics.IncQuoteRequest("rejected")
		return Request{}, ErrEmptyPack
	}

	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return Request{}, fmt.Errorf("encode quote pack: %w", err)
	}
	key, err := util.ObjectKey(util.NamespaceKey(sessionID), fileName)
	if err != nil {
		return Request{}, fmt.Errorf("quote pack key: %w", err)
	}
	if _, err := s.Store.Put(ctx, key, "application/json", bytes.NewReader(data)); err != nil {
		metrics.IncQuoteRequest("failed")
		return Request{}, fmt.Errorf("archive quote pack: %w", err)
	}

	keys := make([]string, 0, len(exp.SelectedProducts))
	for _, p := range exp.SelectedProducts {
		keys = append(keys, p.Key)
	}
	req := Request{
		ID:           s.newID(),
		SessionID:    sessionID,
		CustomerName: exp.CustomerName,
		Line:         exp.Line,
		ProductKeys:  keys,
		StorageKey:   key,
		Status:       StatusSubmitted,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		metrics.IncQuoteRequest("failed")
		return Request{}, fmt.Errorf("record quote request: %w", err)
	}

	metrics.IncQuoteRequest(StatusSubmitted)
	telemetry.Info("quote.started", map[string]any{
		"quote_request_id": req.ID,
		"session_id":       sessionID,
		"products":         len(keys),
		"storage_provider": s.Store.Provider(),
	})
	return req, nil
}

// Get returns a recorded quote request.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.Repo.GetByID(ctx, id)
}

// ListBySession returns every quote request raised from a session.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]Request, error) {
	return s.Repo.ListBySession(ctx, sessionID)
}

// Archive opens the archived export of a quote request.
func (s *Service) Archive(ctx context.Context, id string) (Request, io.ReadCloser, error) {
	req, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Request{}, nil, err
	}
	rc, err := s.Store.Open(ctx, req.StorageKey)
	if err != nil {
		return Request{}, nil, err
	}
	return req, rc, nil
}
