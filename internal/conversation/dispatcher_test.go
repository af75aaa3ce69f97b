package conversation

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopbot/internal/chat"
	"github.com/xenking/shopbot/internal/domain/user"
)

type recordingHandler struct {
	mu      sync.Mutex
	seen    map[int64][]string
	started chan string
	gate    chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		seen:    make(map[int64][]string),
		started: make(chan string, 100),
	}
}

func (h *recordingHandler) Handle(_ context.Context, ev Event) []chat.Reply {
	h.started <- ev.Text
	if h.gate != nil {
		<-h.gate
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[ev.User.ID] = append(h.seen[ev.User.ID], ev.Text)
	return []chat.Reply{{Message: chat.Message{Text: ev.Text}}}
}

func (h *recordingHandler) texts(uid int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen[uid]...)
}

type countingResponder struct {
	done chan struct{}
}

func (r *countingResponder) Respond(context.Context, Event, []chat.Reply) {
	r.done <- struct{}{}
}

type countingResetter struct {
	n atomic.Int32
}

func (r *countingResetter) Reset(int64) {
	r.n.Add(1)
}

func textEvent(uid int64, text string) Event {
	return Event{User: user.User{ID: uid}, Kind: KindText, Text: text}
}

func waitDone(t *testing.T, done <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d replies", i, n)
		}
	}
}

func TestDispatcher_PerUserOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newRecordingHandler()
	r := &countingResponder{done: make(chan struct{}, 100)}
	d := NewDispatcher(h, r, &countingResetter{}, DispatcherConfig{Queue: 50})

	var want []string
	for i := range 40 {
		want = append(want, strconv.Itoa(i))
		require.NoError(t, d.Dispatch(ctx, textEvent(1, strconv.Itoa(i))))
		require.NoError(t, d.Dispatch(ctx, textEvent(2, strconv.Itoa(i))))
	}
	waitDone(t, r.done, 80)

	assert.Equal(t, want, h.texts(1))
	assert.Equal(t, want, h.texts(2))
}

func TestDispatcher_ResetBeforeQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newRecordingHandler()
	h.gate = make(chan struct{})
	r := &countingResponder{done: make(chan struct{}, 10)}
	reset := &countingResetter{}
	d := NewDispatcher(h, r, reset, DispatcherConfig{})

	require.NoError(t, d.Dispatch(ctx, textEvent(1, "slow")))
	<-h.started

	cancelEv := Event{User: user.User{ID: 1}, Kind: KindAction, Action: ParseAction(ActionCancel)}
	require.NoError(t, d.Dispatch(ctx, cancelEv))
	assert.EqualValues(t, 1, reset.n.Load(), "cancel must reset while the first event is still running")

	require.NoError(t, d.Dispatch(ctx, textEvent(1, "plain")))
	assert.EqualValues(t, 1, reset.n.Load())

	close(h.gate)
	waitDone(t, r.done, 3)
}

func TestDispatcher_Busy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newRecordingHandler()
	h.gate = make(chan struct{})
	r := &countingResponder{done: make(chan struct{}, 10)}
	d := NewDispatcher(h, r, &countingResetter{}, DispatcherConfig{Queue: 1})

	require.NoError(t, d.Dispatch(ctx, textEvent(1, "a")))
	<-h.started
	require.NoError(t, d.Dispatch(ctx, textEvent(1, "b")))
	assert.ErrorIs(t, d.Dispatch(ctx, textEvent(1, "c")), ErrBusy)

	// Other users are unaffected.
	require.NoError(t, d.Dispatch(ctx, textEvent(2, "x")))

	close(h.gate)
	waitDone(t, r.done, 3)
}

func TestDispatcher_IdleWorkersExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newRecordingHandler()
	r := &countingResponder{done: make(chan struct{}, 10)}
	d := NewDispatcher(h, r, &countingResetter{}, DispatcherConfig{IdleTimeout: 10 * time.Millisecond})

	require.NoError(t, d.Dispatch(ctx, textEvent(1, "a")))
	require.NoError(t, d.Dispatch(ctx, textEvent(2, "b")))
	waitDone(t, r.done, 2)

	require.Eventually(t, func() bool { return d.Active() == 0 }, 2*time.Second, 5*time.Millisecond)

	// A new event starts a fresh worker.
	require.NoError(t, d.Dispatch(ctx, textEvent(1, "c")))
	waitDone(t, r.done, 1)
	assert.Equal(t, []string{"a", "c"}, h.texts(1))
}

func TestDispatcher_WaitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	h := newRecordingHandler()
	r := &countingResponder{done: make(chan struct{}, 10)}
	d := NewDispatcher(h, r, &countingResetter{}, DispatcherConfig{IdleTimeout: time.Hour})

	require.NoError(t, d.Dispatch(ctx, textEvent(1, "a")))
	waitDone(t, r.done, 1)

	cancel()
	finished := make(chan struct{})
	go func() {
		d.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}
	assert.Zero(t, d.Active())
}

func TestEvent_Resets(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{name: "cancel button", ev: Event{Kind: KindAction, Action: ParseAction(ActionCancel)}, want: true},
		{name: "main menu", ev: Event{Kind: KindAction, Action: ParseAction(ActionMainMenu)}, want: true},
		{name: "cancel command", ev: Event{Kind: KindCommand, Command: CommandCancel}, want: true},
		{name: "start command", ev: Event{Kind: KindCommand, Command: CommandStart}, want: true},
		{name: "cart button", ev: Event{Kind: KindAction, Action: ParseAction(ActionCart)}, want: false},
		{name: "cancel text", ev: Event{Kind: KindText, Text: "cancel"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Resets())
		})
	}
}
