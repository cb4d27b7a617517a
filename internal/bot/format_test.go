package bot

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"feedwatch/internal/model"
)

func TestFormatFeedList(t *testing.T) {
	tests := []struct {
		name string
		subs []model.Subscription
		want string
	}{
		{
			name: "empty",
			subs: nil,
			want: "📜 No feeds added for this chat. Use /add <url> to add one.",
		},
		{
			name: "mixed kinds in order",
			subs: []model.Subscription{
				{URL: "https://blog.example.com/rss", Kind: model.KindFeed},
				{URL: "https://www.youtube.com/feeds/videos.xml?channel_id=UCabc", Kind: model.KindYouTube},
			},
			want: "📜 Feeds for this chat:\n" +
				"https://blog.example.com/rss\n" +
				"https://www.youtube.com/feeds/videos.xml?channel_id=UCabc (YouTube)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatFeedList(tt.subs)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
