package quotes

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores quote requests in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	byID      map[string]Request
	bySession map[string][]Request
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Request),
		bySession: make(map[string][]Request),
	}
}

// Create stores the request.
func (r *MemoryRepo) Create(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[req.ID] = req
	r.bySession[req.SessionID] = append(r.bySession[req.SessionID], req)
	return nil
}

// GetByID returns a request by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.byID[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// ListBySession returns a session's requests, newest first.
func (r *MemoryRepo) ListBySession(ctx context.Context, sessionID string) ([]Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := append([]Request(nil), r.bySession[sessionID]...)
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
