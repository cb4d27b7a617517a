// Package poller implements the feed polling and deduplication engine:
// it decides which chats are due, fetches their sources, diffs entries
// against the per-source seen set, and hands new entries to the sender.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"feedwatch/internal/fetcher"
	"feedwatch/internal/model"
	"feedwatch/internal/storage"
)

// Sender is the interface for delivering notifications and replies.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Poller periodically polls subscribed feeds and sends notifications for
// entries not yet seen.
type Poller struct {
	store        storage.Storage
	fetcher      *fetcher.Fetcher
	sender       Sender
	log          *slog.Logger
	tick         time.Duration
	fetchTimeout time.Duration
	batchWorkers int

	// mu guards polling: chats currently running a poll batch. A chat in
	// the map is Polling; absent means Idle. Entry into Polling is
	// exclusive per chat.
	mu      sync.Mutex
	polling map[int64]struct{}

	// srcMu guards srcLocks: one mutex per source URL, serializing the
	// diff+mark critical section across chats sharing a source.
	srcMu    sync.Mutex
	srcLocks map[string]*sync.Mutex
}

// New creates a Poller with the default HTTP client.
func New(store storage.Storage, sender Sender, log *slog.Logger) *Poller {
	return NewWithFetcher(store, fetcher.New(http.DefaultClient), sender, log)
}

// NewWithFetcher creates a Poller with a custom fetcher (useful for testing).
func NewWithFetcher(store storage.Storage, f *fetcher.Fetcher, sender Sender, log *slog.Logger) *Poller {
	return &Poller{
		store:        store,
		fetcher:      f,
		sender:       sender,
		log:          log,
		tick:         1 * time.Minute,
		fetchTimeout: 30 * time.Second,
		batchWorkers: 4,
		polling:      make(map[int64]struct{}),
		srcLocks:     make(map[string]*sync.Mutex),
	}
}

// SetTickInterval overrides the default 1-minute due-check interval.
func (p *Poller) SetTickInterval(d time.Duration) {
	p.tick = d
}

// Run starts the polling loop, blocking until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.checkDue(ctx)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkDue(ctx)
		}
	}
}

// checkDue dispatches a poll batch for every due chat. Batches for
// independent chats run concurrently; a chat already Polling is skipped.
func (p *Poller) checkDue(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	chats, err := p.store.ListDueChats(ctx, time.Now().UTC())
	if err != nil {
		p.log.Error("list due chats", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, chat := range chats {
		if !p.beginPoll(chat.ID) {
			continue
		}
		wg.Add(1)
		go func(chat model.Chat) {
			defer wg.Done()
			defer p.endPoll(chat.ID)
			p.pollChat(ctx, chat)
		}(chat)
	}
	wg.Wait()
}

// CheckNow forces an immediate poll batch for one chat, bypassing the
// interval check. It reports false without polling when a batch for the
// chat is already in flight.
func (p *Poller) CheckNow(ctx context.Context, chatID int64) (bool, error) {
	chat, err := p.store.GetChat(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("get chat: %w", err)
	}

	if !p.beginPoll(chatID) {
		return false, nil
	}
	defer p.endPoll(chatID)

	p.pollChat(ctx, *chat)
	return true, nil
}

func (p *Poller) beginPoll(chatID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.polling[chatID]; busy {
		return false
	}
	p.polling[chatID] = struct{}{}
	return true
}

func (p *Poller) endPoll(chatID int64) {
	p.mu.Lock()
	delete(p.polling, chatID)
	p.mu.Unlock()
}

// pollChat runs one poll batch: all of the chat's sources, fetched
// concurrently. The last-poll time is recorded at dispatch so cadence does
// not drift with fetch latency.
func (p *Poller) pollChat(ctx context.Context, chat model.Chat) {
	p.log.Debug("polling chat", "chat_id", chat.ID)

	if err := p.store.SetLastPoll(ctx, chat.ID, time.Now().UTC()); err != nil {
		p.log.Error("set last poll", "chat_id", chat.ID, "error", err)
	}

	subs, err := p.store.ListSubscriptions(ctx, chat.ID)
	if err != nil {
		p.log.Error("list subscriptions", "chat_id", chat.ID, "error", err)
		return
	}

	timeout := p.fetchTimeout
	if half := time.Duration(chat.IntervalMinutes) * time.Minute / 2; half < timeout {
		timeout = half
	}

	g := new(errgroup.Group)
	g.SetLimit(p.batchWorkers)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			p.pollSource(ctx, chat.ID, sub, timeout)
			return nil
		})
	}
	_ = g.Wait()
}

// pollSource runs one fetch-diff-notify cycle for a single (chat, source)
// pair. Fetch failures leave the seen set untouched. Each new entry is
// marked seen before it is sent; a delivery failure never unmarks it.
func (p *Poller) pollSource(ctx context.Context, chatID int64, sub model.Subscription, timeout time.Duration) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries, err := p.fetcher.Fetch(fctx, sub.URL)
	if err != nil {
		p.log.Error("fetch feed", "chat_id", chatID, "url", sub.URL, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	// Serialize diff+mark per source so two chats sharing a source cannot
	// both see the same entry as new.
	lock := p.sourceLock(sub.URL)
	lock.Lock()
	defer lock.Unlock()

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	newIDs, err := p.store.DiffNew(ctx, sub.URL, ids)
	if err != nil {
		p.log.Error("diff entries", "chat_id", chatID, "url", sub.URL, "error", err)
		return
	}
	if len(newIDs) == 0 {
		return
	}

	fresh := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		fresh[id] = struct{}{}
	}

	sent := 0
	for _, entry := range entries {
		if _, ok := fresh[entry.ID]; !ok {
			continue
		}
		// Guard against a feed repeating an ID within one document.
		delete(fresh, entry.ID)

		if err := p.store.MarkSeen(ctx, sub.URL, entry.ID); err != nil {
			p.log.Error("mark seen", "url", sub.URL, "entry_id", entry.ID, "error", err)
			continue
		}
		p.sender.SendMessage(chatID, FormatNotification(entry))
		sent++

		// Rate limit: ~20 messages/sec max for Telegram
		time.Sleep(50 * time.Millisecond)
	}

	if sent > 0 {
		p.log.Info("sent notifications", "chat_id", chatID, "url", sub.URL, "count", sent)
	}
}

func (p *Poller) sourceLock(url string) *sync.Mutex {
	p.srcMu.Lock()
	defer p.srcMu.Unlock()
	m, ok := p.srcLocks[url]
	if !ok {
		m = &sync.Mutex{}
		p.srcLocks[url] = m
	}
	return m
}

// FormatNotification renders a feed entry as a notification message.
func FormatNotification(entry model.Entry) string {
	if entry.Link == "" {
		return "⚡️ " + entry.Title
	}
	return fmt.Sprintf("⚡️ %s\n%s", entry.Title, entry.Link)
}
