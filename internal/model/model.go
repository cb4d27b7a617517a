// Package model defines the domain types used across the application.
package model

import "time"

// SourceKind tags how a feed source was obtained.
type SourceKind string

// Supported source kinds.
const (
	// KindFeed is a plain syndication feed URL.
	KindFeed SourceKind = "feed"
	// KindYouTube is a feed derived from a YouTube channel URL.
	KindYouTube SourceKind = "youtube"
)

// Chat represents a subscriber: a Telegram chat that receives notifications.
type Chat struct {
	ID              int64
	IntervalMinutes int
	LastPollAt      *time.Time
	CreatedAt       time.Time
}

// Subscription ties a chat to a feed source URL.
// At most one subscription exists per (chat, URL) pair.
type Subscription struct {
	ID        int64
	ChatID    int64
	URL       string
	Kind      SourceKind
	CreatedAt time.Time
}

// Entry is one item parsed out of a feed. Entries are recomputed on every
// fetch; only the ID is persisted, in the per-source seen set.
type Entry struct {
	ID        string
	Title     string
	Link      string
	Published *time.Time
}
