package notify

import "context"

// Sender delivers rendered announcements to one channel.
type Sender interface {
	Channel() Channel
	// SendText delivers a plain announcement to a chat target.
	SendText(ctx context.Context, target, text string) error
	// SendMedia delivers an image with a caption to a chat target.
	SendMedia(ctx context.Context, target, imageURL, caption string) error
}
