package notify

import (
	"context"
	"log/slog"

	"github.com/bissquit/promo-garden/internal/routing"
)

// DeliveryStatus records, per channel, whether at least one target
// received the announcement.
type DeliveryStatus map[Channel]bool

// Delivered reports whether any channel got the message out.
func (s DeliveryStatus) Delivered() bool {
	for _, ok := range s {
		if ok {
			return true
		}
	}
	return false
}

// Dispatcher renders deals and fans them out to the configured senders.
// Channels fail independently: one channel erroring never blocks the
// others.
type Dispatcher struct {
	renderer *Renderer
	senders  map[Channel]Sender
}

// NewDispatcher creates a new dispatcher over the given senders.
func NewDispatcher(renderer *Renderer, senders ...Sender) *Dispatcher {
	senderMap := make(map[Channel]Sender)
	for _, s := range senders {
		senderMap[s.Channel()] = s
	}
	return &Dispatcher{renderer: renderer, senders: senderMap}
}

// DispatchDeal sends one deal to every target the routing decision
// names and reports per-channel delivery.
func (d *Dispatcher) DispatchDeal(ctx context.Context, msg Message, decision routing.Decision) DeliveryStatus {
	status := make(DeliveryStatus)
	d.sendToChannel(ctx, ChannelTelegram, msg, decision.TelegramChats, status)
	d.sendToChannel(ctx, ChannelWhatsapp, msg, decision.WhatsappGroups, status)
	return status
}

func (d *Dispatcher) sendToChannel(ctx context.Context, channel Channel, msg Message, targets []string, status DeliveryStatus) {
	if len(targets) == 0 {
		return
	}
	sender, ok := d.senders[channel]
	if !ok {
		slog.Warn("no sender for channel", "channel", channel)
		return
	}

	text, err := d.renderer.Render(channel, msg)
	if err != nil {
		slog.Error("failed to render deal", "channel", channel, "error", err)
		status[channel] = false
		return
	}

	delivered := false
	for _, target := range targets {
		if err := d.deliver(ctx, sender, target, msg.ImageURL, text); err != nil {
			slog.Error("failed to send deal",
				"channel", channel,
				"target", target,
				"error", err,
			)
			continue
		}
		delivered = true
	}
	status[channel] = delivered
}

// deliver prefers a media message and degrades to text when the image
// cannot be attached.
func (d *Dispatcher) deliver(ctx context.Context, sender Sender, target, imageURL, text string) error {
	if imageURL != "" {
		if err := sender.SendMedia(ctx, target, imageURL, text); err == nil {
			return nil
		} else {
			slog.Warn("media send failed, retrying as text",
				"channel", sender.Channel(),
				"target", target,
				"error", err,
			)
		}
	}
	return sender.SendText(ctx, target, text)
}

// Announce sends an operational notice to every channel's targets,
// best effort.
func (d *Dispatcher) Announce(ctx context.Context, text string, decision routing.Decision) {
	targetsByChannel := map[Channel][]string{
		ChannelTelegram: decision.TelegramChats,
		ChannelWhatsapp: decision.WhatsappGroups,
	}
	for channel, targets := range targetsByChannel {
		sender, ok := d.senders[channel]
		if !ok {
			continue
		}
		for _, target := range targets {
			if err := sender.SendText(ctx, target, text); err != nil {
				slog.Warn("announcement failed", "channel", channel, "target", target, "error", err)
			}
		}
	}
}
