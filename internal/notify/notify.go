// Package notify delivers messages to operators and end users over the chat
// transport.
package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopbot/internal/chat"
)

// Sender delivers a message to a single chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg chat.Message) error
}

// Config controls fan-out behaviour.
type Config struct {
	// Recipients are operator chat ids.
	Recipients []int64
	// Timeout bounds each delivery.
	Timeout time.Duration
	// Parallelism limits concurrent deliveries.
	Parallelism int
}

// Report summarizes a broadcast.
type Report struct {
	Delivered int
	Failed    int
}

// Notifier fans messages out to operators.
type Notifier struct {
	sender      Sender
	recipients  []int64
	timeout     time.Duration
	parallelism int
}

// New creates a Notifier.
func New(sender Sender, cfg Config) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Notifier{
		sender:      sender,
		recipients:  append([]int64(nil), cfg.Recipients...),
		timeout:     cfg.Timeout,
		parallelism: cfg.Parallelism,
	}
}

// Recipients returns the configured operator ids.
func (n *Notifier) Recipients() []int64 {
	return append([]int64(nil), n.recipients...)
}

// Broadcast delivers msg to every operator. Deliveries are independent: a
// failure is logged and counted, never aborts the others, and the caller's
// cancellation does not cut deliveries short.
func (n *Notifier) Broadcast(ctx context.Context, msg chat.Message) Report {
	lg := zctx.From(ctx)
	if len(n.recipients) == 0 {
		lg.Debug("No operators configured, notification dropped")
		return Report{}
	}

	ctx = context.WithoutCancel(ctx)
	var delivered, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(n.parallelism)
	for _, id := range n.recipients {
		g.Go(func() error {
			if err := n.Deliver(ctx, id, msg); err != nil {
				failed.Add(1)
				lg.Warn("Operator notification failed",
					zap.Int64("recipient", id),
					zap.Error(err),
				)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
	}
}

// Deliver sends msg to a single chat with the delivery timeout applied.
func (n *Notifier) Deliver(ctx context.Context, chatID int64, msg chat.Message) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.sender.Send(ctx, chatID, msg); err != nil {
		return errors.Wrapf(err, "send to %d", chatID)
	}
	return nil
}
