package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedwatch/internal/model"
	"feedwatch/internal/storage"
	"feedwatch/internal/youtube"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if err := b.store.RegisterChat(ctx, chatID); err != nil {
		b.log.Error("register chat", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	b.reply(chatID, fmt.Sprintf(`👋 Welcome!

This chat is now set for feed updates.

📥 Add a feed: /add <url>
📜 List your feeds: /list
🗑️ Remove a feed: /delete <url>
🔍 Check feeds manually: /check
⏱️ Set update interval: /update <minutes>

New entries are checked every %d minutes by default.`, b.cfg.DefaultIntervalMinutes))
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, fmt.Sprintf(`Commands:
/add <url> — subscribe to an RSS/Atom feed or a YouTube channel
/list — show this chat's feeds
/delete <url> — unsubscribe from a feed
/check — check all feeds now
/update <minutes> — set the check interval (minimum %d)
/start — register this chat`, b.cfg.MinIntervalMinutes))
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	rawURL, err := ParseURLArg(args)
	if err != nil {
		b.reply(chatID, "📥 Please provide a feed URL after the /add command.")
		return
	}

	feedURL := rawURL
	kind := model.KindFeed
	if youtube.IsChannelURL(rawURL) {
		feedURL, err = b.resolver.Resolve(ctx, rawURL)
		if err != nil {
			b.log.Warn("resolve channel", "chat_id", chatID, "url", rawURL, "error", err)
			b.reply(chatID, fmt.Sprintf("❌ Could not resolve YouTube channel: %v", err))
			return
		}
		kind = model.KindYouTube
	}

	// Reject unreachable or unparseable sources up front, so the poller
	// only ever deals with sources that worked at least once.
	vctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := b.fetcher.Fetch(vctx, feedURL); err != nil {
		b.reply(chatID, fmt.Sprintf("❌ Feed URL is not usable: %v", err))
		return
	}

	if err := b.store.RegisterChat(ctx, chatID); err != nil {
		b.log.Error("register chat", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	created, err := b.store.AddSubscription(ctx, &model.Subscription{
		ChatID: chatID,
		URL:    feedURL,
		Kind:   kind,
	})
	if err != nil {
		b.log.Error("add subscription", "chat_id", chatID, "url", feedURL, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}
	if !created {
		b.reply(chatID, "❌ Feed already added.")
		return
	}
	b.reply(chatID, fmt.Sprintf("📜 Added feed: %s", feedURL))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	subs, err := b.store.ListSubscriptions(ctx, chatID)
	if err != nil {
		b.log.Error("list subscriptions", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}
	b.reply(chatID, FormatFeedList(subs))
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) {
	rawURL, err := ParseURLArg(args)
	if err != nil {
		b.reply(chatID, "🗑️ Please provide a feed URL after the /delete command.")
		return
	}

	removed, err := b.store.RemoveSubscription(ctx, chatID, rawURL)
	if err != nil {
		b.log.Error("remove subscription", "chat_id", chatID, "url", rawURL, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}
	if !removed {
		b.reply(chatID, "❌ Feed not found for this chat.")
		return
	}
	b.reply(chatID, fmt.Sprintf("🗑️ Deleted feed: %s", rawURL))
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64) {
	chat, err := b.store.GetChat(ctx, chatID)
	if err != nil {
		b.reply(chatID, "This chat is not registered yet. Use /start first.")
		return
	}

	ran, err := b.checker.CheckNow(ctx, chatID)
	if err != nil {
		b.log.Error("manual check", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}
	if !ran {
		b.reply(chatID, "⏳ A check is already in progress for this chat.")
		return
	}

	next := time.Now().UTC().Add(time.Duration(chat.IntervalMinutes) * time.Minute)
	b.reply(chatID, fmt.Sprintf("✅ Manual feed check completed.\nNext update at: %s\nCurrent interval: %d minutes",
		next.Format("02.01.2006 15:04:05 UTC"), chat.IntervalMinutes))
}

func (b *Bot) handleUpdate(ctx context.Context, chatID int64, args string) {
	minutes, err := ParseMinutesArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("⏱️ Please provide a valid interval in minutes (minimum %d). Example: /update 30", b.cfg.MinIntervalMinutes))
		return
	}

	if err := b.store.RegisterChat(ctx, chatID); err != nil {
		b.log.Error("register chat", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	if err := b.store.SetInterval(ctx, chatID, minutes); err != nil {
		if errors.Is(err, storage.ErrBelowMinimum) {
			b.reply(chatID, fmt.Sprintf("⏱️ Interval must be at least %d minutes.", b.cfg.MinIntervalMinutes))
			return
		}
		b.log.Error("set interval", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("⏱️ Update interval set to %d minutes.", minutes))
}
