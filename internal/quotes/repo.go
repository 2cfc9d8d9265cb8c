package quotes

import "context"

// Repo persists quote requests.
type Repo interface {
	Create(ctx context.Context, req Request) error
	GetByID(ctx context.Context, id string) (Request, error)
	ListBySession(ctx context.Context, sessionID string) ([]Request, error)
}
