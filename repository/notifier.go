package repository

import (
	"context"

	"github.com/doorcount/backend/domain"
)

// Change operations carried on the notification channel.
const (
	ChangeInsert = "insert"
	ChangeDelete = "delete"
)

// Change is a "something changed, refetch" signal. Subscribers must treat
// delivery as at-least-once and possibly missed: the payload is a hint, never
// the sole source of truth for state updates.
type Change struct {
	Op           string        `json:"op"`
	Table        string        `json:"table"`
	BusinessDate string        `json:"business_date,omitempty"`
	Event        *domain.Event `json:"event,omitempty"`
}

type ChangeNotifier interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe delivers changes until ctx is cancelled, at which point the
	// returned channel is closed.
	Subscribe(ctx context.Context) (<-chan Change, error)
}
