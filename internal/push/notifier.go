package push

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/shelflife/internal/event"
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/notify"
)

type sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, data []byte) error
}

type subscriptionStore interface {
	ListByZone(ctx context.Context, zone string) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Notifier turns local change events into wake pushes for every device
// subscribed to the zone.
type Notifier struct {
	sender sender
	subs   subscriptionStore
	zone   string
	logger *slog.Logger
}

func NewNotifier(s sender, subs subscriptionStore, zone string, logger *slog.Logger) *Notifier {
	return &Notifier{sender: s, subs: subs, zone: zone, logger: logger.With("component", "push")}
}

// Run consumes sub until ctx ends or sub is closed.
func (n *Notifier) Run(ctx context.Context, sub *event.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			n.Notify(ctx, e)
		}
	}
}

// Notify sends the wakes for e. Expired subscriptions are removed.
func (n *Notifier) Notify(ctx context.Context, e event.Event) {
	wakes := notify.WakesFor(e)
	if len(wakes) == 0 {
		return
	}
	subs, err := n.subs.ListByZone(ctx, n.zone)
	if err != nil {
		n.logger.Error("list push subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	for _, w := range wakes {
		data, err := notify.Encode(w)
		if err != nil {
			n.logger.Error("encode wake", "error", err)
			continue
		}
		for i := range subs {
			sub := &subs[i]
			if sub.Endpoint == "" {
				continue
			}
			err := n.sender.Send(ctx, sub, data)
			switch {
			case errors.Is(err, ErrExpired):
				n.logger.Info("removing expired push subscription", "device", sub.DeviceName)
				if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
					n.logger.Error("delete push subscription", "error", err)
				}
				sub.Endpoint = ""
			case err != nil:
				n.logger.Warn("send wake", "error", err, "device", sub.DeviceName)
			}
		}
	}
}
