// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"feedwatch/internal/model"
)

// ErrBelowMinimum is returned by SetInterval when the requested interval
// is below the configured floor.
var ErrBelowMinimum = errors.New("interval below minimum")

// Storage is the interface for all persistence operations.
type Storage interface {
	RegisterChat(ctx context.Context, chatID int64) error
	GetChat(ctx context.Context, chatID int64) (*model.Chat, error)
	ListDueChats(ctx context.Context, now time.Time) ([]model.Chat, error)
	SetLastPoll(ctx context.Context, chatID int64, t time.Time) error
	SetInterval(ctx context.Context, chatID int64, minutes int) error

	AddSubscription(ctx context.Context, sub *model.Subscription) (bool, error)
	RemoveSubscription(ctx context.Context, chatID int64, url string) (bool, error)
	ListSubscriptions(ctx context.Context, chatID int64) ([]model.Subscription, error)

	DiffNew(ctx context.Context, sourceURL string, entryIDs []string) ([]string, error)
	MarkSeen(ctx context.Context, sourceURL, entryID string) error

	Close() error
}
