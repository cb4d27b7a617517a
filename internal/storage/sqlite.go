package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"feedwatch/internal/model"
	"feedwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Options configure a SQLite store. Zero fields fall back to defaults.
type Options struct {
	// DefaultIntervalMinutes is assigned to newly registered chats.
	DefaultIntervalMinutes int
	// MinIntervalMinutes is the SetInterval floor.
	MinIntervalMinutes int
	// SeenCap is the per-source bound on retained entry IDs.
	SeenCap int
}

func (o Options) withDefaults() Options {
	if o.DefaultIntervalMinutes == 0 {
		o.DefaultIntervalMinutes = 30
	}
	if o.MinIntervalMinutes == 0 {
		o.MinIntervalMinutes = 5
	}
	if o.SeenCap == 0 {
		o.SeenCap = 200
	}
	return o
}

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db   *sql.DB
	opts Options
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string, opts Options) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, opts: opts.withDefaults()}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// RegisterChat creates a chat row with the default interval.
// Registering an existing chat is a no-op.
func (s *SQLite) RegisterChat(ctx context.Context, chatID int64) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chats (id, interval_minutes, created_at) VALUES (?, ?, ?)`,
		chatID, s.opts.DefaultIntervalMinutes, now,
	)
	if err != nil {
		return fmt.Errorf("register chat: %w", err)
	}
	return nil
}

// GetChat returns a single chat by its ID.
func (s *SQLite) GetChat(ctx context.Context, chatID int64) (*model.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, interval_minutes, last_poll_at, created_at FROM chats WHERE id = ?`, chatID,
	)
	return scanChat(row)
}

// ListDueChats returns chats whose interval has elapsed since their last
// poll dispatch, or that have never been polled.
func (s *SQLite) ListDueChats(ctx context.Context, now time.Time) ([]model.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, interval_minutes, last_poll_at, created_at
		 FROM chats
		 WHERE last_poll_at IS NULL
		    OR datetime(last_poll_at, '+' || interval_minutes || ' minutes') <= datetime(?)
		 ORDER BY id`,
		now.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query due chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chats []model.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// SetLastPoll records the dispatch time of a chat's latest poll batch.
func (s *SQLite) SetLastPoll(ctx context.Context, chatID int64, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chats SET last_poll_at = ? WHERE id = ?`,
		t.UTC().Format(timeLayout), chatID,
	)
	if err != nil {
		return fmt.Errorf("set last poll: %w", err)
	}
	return nil
}

// SetInterval updates a chat's poll interval. Values below the configured
// floor are rejected with ErrBelowMinimum and leave the prior value intact.
func (s *SQLite) SetInterval(ctx context.Context, chatID int64, minutes int) error {
	if minutes < s.opts.MinIntervalMinutes {
		return fmt.Errorf("%d min: %w (floor is %d)", minutes, ErrBelowMinimum, s.opts.MinIntervalMinutes)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE chats SET interval_minutes = ? WHERE id = ?`, minutes, chatID,
	)
	if err != nil {
		return fmt.Errorf("set interval: %w", err)
	}
	return nil
}

// AddSubscription inserts a subscription idempotently. It reports whether a
// new row was created; false means the (chat, URL) pair already existed.
func (s *SQLite) AddSubscription(ctx context.Context, sub *model.Subscription) (bool, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscriptions (chat_id, url, kind, created_at) VALUES (?, ?, ?, ?)`,
		sub.ChatID, sub.URL, string(sub.Kind), now,
	)
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt, _ = time.Parse(timeLayout, now)
	return true, nil
}

// RemoveSubscription deletes a subscription by chat and URL. It reports
// whether a subscription existed; false is not an error.
func (s *SQLite) RemoveSubscription(ctx context.Context, chatID int64, url string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ? AND url = ?`, chatID, url,
	)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListSubscriptions returns a chat's subscriptions in insertion order.
func (s *SQLite) ListSubscriptions(ctx context.Context, chatID int64) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, url, kind, created_at FROM subscriptions WHERE chat_id = ? ORDER BY id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		var kindStr, createdStr string
		if err := rows.Scan(&sub.ID, &sub.ChatID, &sub.URL, &kindStr, &createdStr); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.Kind = model.SourceKind(kindStr)
		sub.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DiffNew returns the subsequence of entryIDs not yet recorded for the
// source, preserving the input order.
func (s *SQLite) DiffNew(ctx context.Context, sourceURL string, entryIDs []string) ([]string, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(entryIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(entryIDs)+1)
	args = append(args, sourceURL)
	for _, id := range entryIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id FROM seen_entries WHERE source_url = ? AND entry_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query seen entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entry id: %w", err)
		}
		seen[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var fresh []string
	for _, id := range entryIDs {
		if _, ok := seen[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// MarkSeen records an entry ID for a source and evicts the oldest IDs
// beyond the configured cap. Idempotent.
func (s *SQLite) MarkSeen(ctx context.Context, sourceURL, entryID string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_entries (source_url, entry_id, seen_at) VALUES (?, ?, ?)`,
		sourceURL, entryID, now,
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}

	// FIFO eviction by insertion order, keyed per source.
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM seen_entries
		 WHERE source_url = ?
		   AND rowid NOT IN (
		     SELECT rowid FROM seen_entries WHERE source_url = ? ORDER BY rowid DESC LIMIT ?
		   )`,
		sourceURL, sourceURL, s.opts.SeenCap,
	)
	if err != nil {
		return fmt.Errorf("evict seen entries: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanChat(row scannable) (*model.Chat, error) {
	var c model.Chat
	var lastPoll, created sql.NullString
	err := row.Scan(&c.ID, &c.IntervalMinutes, &lastPoll, &created)
	if err != nil {
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	if lastPoll.Valid {
		t, _ := time.Parse(timeLayout, lastPoll.String)
		c.LastPollAt = &t
	}
	if created.Valid {
		c.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &c, nil
}
