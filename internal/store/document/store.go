// Package document stores interview source documents (process handbooks,
// org charts, system inventories) keyed by session.
package document

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("document not found")

// Store defines operations for persisting uploaded documents.
type Store interface {
	Put(ctx context.Context, sessionID, name string, content []byte) error
	Get(ctx context.Context, sessionID, name string) ([]byte, error)
	List(ctx context.Context, sessionID string) ([]string, error)
}
