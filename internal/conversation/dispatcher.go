package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopbot/internal/chat"
)

// ErrBusy is returned by Dispatch when the user's queue is full.
var ErrBusy = errors.New("too many pending events")

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev Event) []chat.Reply
}

// Responder delivers replies for an event.
type Responder interface {
	Respond(ctx context.Context, ev Event, replies []chat.Reply)
}

// Resetter cancels a user's checkout.
type Resetter interface {
	Reset(user int64)
}

// DispatcherConfig tunes per-user workers.
type DispatcherConfig struct {
	// Queue is the number of events buffered per user.
	Queue int
	// IdleTimeout stops a worker after this long without events.
	IdleTimeout time.Duration
}

func (c *DispatcherConfig) setDefaults() {
	if c.Queue <= 0 {
		c.Queue = 16
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = time.Minute
	}
}

// Dispatcher runs one worker per active user so that events of the same
// user are handled in arrival order while different users proceed in
// parallel.
type Dispatcher struct {
	handler   Handler
	responder Responder
	resetter  Resetter
	cfg       DispatcherConfig

	mu      sync.Mutex
	workers map[int64]chan Event
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(h Handler, r Responder, reset Resetter, cfg DispatcherConfig) *Dispatcher {
	cfg.setDefaults()
	return &Dispatcher{
		handler:   h,
		responder: r,
		resetter:  reset,
		cfg:       cfg,
		workers:   make(map[int64]chan Event),
	}
}

// Dispatch enqueues ev for its user. Events that abandon a flow reset the
// user's checkout before queueing, so a pending step finishing afterwards
// is discarded. Workers live as long as ctx.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	uid := ev.User.ID
	if ev.Resets() {
		d.resetter.Reset(uid)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	queue, ok := d.workers[uid]
	if !ok {
		queue = make(chan Event, d.cfg.Queue)
		d.workers[uid] = queue
		d.wg.Add(1)
		go d.run(ctx, uid, queue)
	}

	select {
	case queue <- ev:
		return nil
	default:
		return ErrBusy
	}
}

func (d *Dispatcher) run(ctx context.Context, uid int64, queue chan Event) {
	defer d.wg.Done()

	ctx = zctx.With(ctx, zap.Int64("user_id", uid))
	idle := time.NewTimer(d.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case ev := <-queue:
			d.responder.Respond(ctx, ev, d.handler.Handle(ctx, ev))
			idle.Reset(d.cfg.IdleTimeout)

		case <-idle.C:
			if d.retire(uid, queue, false) {
				return
			}
			idle.Reset(d.cfg.IdleTimeout)

		case <-ctx.Done():
			d.retire(uid, queue, true)
			return
		}
	}
}

// retire unregisters the worker owning queue unless events arrived
// meanwhile and force is not set.
func (d *Dispatcher) retire(uid int64, queue chan Event, force bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !force && len(queue) > 0 {
		return false
	}
	if d.workers[uid] == queue {
		delete(d.workers, uid)
	}
	return true
}

// Active returns the number of running workers.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Wait blocks until all workers exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
