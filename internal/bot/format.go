package bot

import (
	"fmt"
	"strings"

	"feedwatch/internal/model"
)

// FormatFeedList formats a chat's subscriptions for display, in the order
// they were added.
func FormatFeedList(subs []model.Subscription) string {
	if len(subs) == 0 {
		return "📜 No feeds added for this chat. Use /add <url> to add one."
	}
	var b strings.Builder
	b.WriteString("📜 Feeds for this chat:\n")
	for _, sub := range subs {
		if sub.Kind == model.KindYouTube {
			fmt.Fprintf(&b, "%s (YouTube)\n", sub.URL)
			continue
		}
		fmt.Fprintf(&b, "%s\n", sub.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
