package quotes

import (
	"errors"
	"time"
)

// Status values for a quote request.
const (
	StatusSubmitted = "submitted"
)

var (
	ErrEmptyPack = errors.New("quote pack is empty")
	ErrNotFound  = errors.New("quote request not found")
)

// Request records a quote pack handed off for formal quotation.
type Request struct {
	ID           string    `json:"quoteRequestId"`
	SessionID    string    `json:"sessionId"`
	CustomerName string    `json:"customerName"`
	Line         string    `json:"line"`
	ProductKeys  []string  `json:"productKeys"`
	StorageKey   string    `json:"storageKey"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}
