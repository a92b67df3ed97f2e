// Package notify fans deal announcements out to chat channels.
package notify

// Channel identifies an outbound messaging channel.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsapp Channel = "whatsapp"
)

// Message is the channel-independent view of one deal announcement.
// OldPrice and CouponCode are zero-valued when absent.
type Message struct {
	Title      string
	Price      float64
	OldPrice   float64
	Link       string
	ImageURL   string
	Category   string
	Store      string
	CouponCode string
}
