package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopbot/internal/domain/activity"
	"github.com/xenking/shopbot/internal/domain/cart"
	"github.com/xenking/shopbot/internal/domain/catalog"
	"github.com/xenking/shopbot/internal/domain/checkout"
	"github.com/xenking/shopbot/internal/domain/promo"
	"github.com/xenking/shopbot/internal/domain/user"
	"github.com/xenking/shopbot/internal/remote"
)

// --- Mock implementations ---

type mockBackend struct {
	receipt  Receipt
	err      error
	routing  remote.Result[Routing]
	requests []Request
	// onCreate runs inside CreateOrder, simulating work that overlaps
	// the backend call.
	onCreate func()
}

func (m *mockBackend) CreateOrder(_ context.Context, req Request) (Receipt, error) {
	m.requests = append(m.requests, req)
	if m.onCreate != nil {
		m.onCreate()
	}
	return m.receipt, m.err
}

func (m *mockBackend) PaymentRouting(_ context.Context, _ int64) remote.Result[Routing] {
	return m.routing
}

type mockNotifier struct {
	placed []Placed
}

func (m *mockNotifier) OrderPlaced(_ context.Context, _ user.User, p Placed) {
	m.placed = append(m.placed, p)
}

type mockTracker struct {
	events []activity.Event
}

func (m *mockTracker) TrackActivity(_ context.Context, e activity.Event) {
	m.events = append(m.events, e)
}

// --- Helpers ---

const uid = int64(100)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type fixture struct {
	carts    *cart.Store
	sessions *checkout.Store
	backend  *mockBackend
	notifier *mockNotifier
	tracker  *mockTracker
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		carts:    cart.NewStore(),
		sessions: checkout.NewStore(0),
		backend:  &mockBackend{receipt: Receipt{ID: "501"}, routing: remote.Empty[Routing]()},
		notifier: &mockNotifier{},
		tracker:  &mockTracker{},
	}
	f.svc = NewService(f.carts, f.sessions, f.backend, f.notifier, f.tracker)
	return f
}

// confirm drives the user's checkout to confirming_order.
func (f *fixture) confirm(t *testing.T, method checkout.PaymentMethod, discount *promo.Discount) {
	t.Helper()
	s, gen := f.sessions.Begin(uid)
	inputs := []checkout.Input{
		checkout.Text{Value: "John"},
		checkout.Text{Value: "Doe"},
		checkout.Text{Value: "123 Main St"},
		checkout.Text{Value: "Austin"},
		checkout.Text{Value: "TX"},
		checkout.Text{Value: "78701"},
		checkout.Text{Value: "+15125550100"},
		checkout.Skip{Field: checkout.StateCollectingApartment},
		checkout.Skip{Field: checkout.StateCollectingCompany},
		checkout.Payment{Method: method},
	}
	if discount != nil {
		inputs = append(inputs, checkout.EnterPromo{}, checkout.PromoApplied{Discount: *discount})
	}
	for _, in := range inputs {
		var err error
		s, err = checkout.Transition(s, in)
		require.NoError(t, err)
	}
	require.True(t, f.sessions.Commit(uid, gen, s))
}

func (f *fixture) fill() {
	f.carts.Add(uid, catalog.Product{ID: "1", Name: "Widget", Price: d("40.00")}, 2)
	f.carts.Add(uid, catalog.Product{ID: "2", Name: "Gadget", Price: d("20.00")}, 1)
}

var user1 = user.User{ID: uid, FirstName: "John"}

// --- Tests ---

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t)
	f.fill()
	f.confirm(t, checkout.PaymentCrypto, &promo.Discount{Code: "SAVE10", Type: promo.DiscountPercentage, Value: d("10")})

	placed, err := f.svc.Submit(context.Background(), user1)
	require.NoError(t, err)

	assert.Equal(t, "501", placed.ID)
	assert.True(t, d("100.00").Equal(placed.Totals.Subtotal))
	assert.True(t, d("10.00").Equal(placed.Totals.Discount))
	assert.True(t, d("90.00").Equal(placed.Total))
	assert.False(t, placed.AwaitsRouting())

	require.Len(t, f.backend.requests, 1)
	req := f.backend.requests[0]
	assert.Equal(t, uid, req.UserID)
	assert.Equal(t, "SAVE10", req.Promocode)
	assert.Equal(t, "Phone: +15125550100", req.Notes)
	assert.Equal(t, checkout.PaymentCrypto, req.PaymentMethod)
	require.Len(t, req.Lines, 2)
	assert.Equal(t, "1", req.Lines[0].ProductID)
	assert.Equal(t, 2, req.Lines[0].Quantity)

	assert.Empty(t, f.carts.Get(uid))
	s, _ := f.sessions.Get(uid)
	assert.Equal(t, checkout.StateIdle, s.State)

	require.Len(t, f.notifier.placed, 1)
	assert.Equal(t, "501", f.notifier.placed[0].ID)
	require.Len(t, f.tracker.events, 1)
	assert.Equal(t, activity.OrderCreated, f.tracker.events[0].Type)
	assert.Equal(t, "501", f.tracker.events[0].Data["order_id"])
	assert.Equal(t, "90.00", f.tracker.events[0].Data["total"])
}

func TestSubmit_BackendTotalWins(t *testing.T) {
	f := newFixture(t)
	f.fill()
	f.confirm(t, checkout.PaymentCrypto, nil)
	f.backend.receipt = Receipt{ID: "7", Total: decimal.NewNullDecimal(d("105.50"))}

	placed, err := f.svc.Submit(context.Background(), user1)
	require.NoError(t, err)

	assert.True(t, d("105.50").Equal(placed.Total))
	assert.True(t, d("100.00").Equal(placed.Totals.Total))
}

func TestSubmit_BackendFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.fill()
	f.confirm(t, checkout.PaymentZelle, nil)
	f.backend.err = errors.New("unexpected status 500")

	_, err := f.svc.Submit(context.Background(), user1)
	require.ErrorIs(t, err, ErrSubmitFailed)

	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.EqualError(t, serr.Err, "unexpected status 500")

	assert.Len(t, f.carts.Get(uid), 2)
	s, _ := f.sessions.Get(uid)
	assert.Equal(t, checkout.StateConfirmingOrder, s.State)
	assert.Equal(t, "Doe", s.Shipping.LastName)
	assert.Empty(t, f.notifier.placed)
	assert.Empty(t, f.tracker.events)

	// Retry without re-entering anything.
	f.backend.err = nil
	placed, err := f.svc.Submit(context.Background(), user1)
	require.NoError(t, err)
	assert.Equal(t, "501", placed.ID)
	assert.Len(t, f.backend.requests, 2)
	assert.Equal(t, f.backend.requests[0].Shipping, f.backend.requests[1].Shipping)
	assert.NotEmpty(t, f.backend.requests[0].IdempotencyKey)
	assert.Equal(t, f.backend.requests[0].IdempotencyKey, f.backend.requests[1].IdempotencyKey)
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.fill()
	f.confirm(t, checkout.PaymentZelle, nil)

	// Cart emptied after checkout began.
	f.carts.Clear(uid)

	_, err := f.svc.Submit(context.Background(), user1)
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, f.backend.requests)
}

func TestSubmit_NotConfirming(t *testing.T) {
	f := newFixture(t)
	f.fill()
	f.sessions.Begin(uid)

	_, err := f.svc.Submit(context.Background(), user1)
	require.ErrorIs(t, err, checkout.ErrNotConfirming)

	_, err = f.svc.Submit(context.Background(), user.User{ID: 999})
	require.ErrorIs(t, err, checkout.ErrNotConfirming)
	assert.Empty(t, f.backend.requests)
}

func TestSubmit_CancelDuringCall(t *testing.T) {
	f := newFixture(t)
	f.fill()
	f.confirm(t, checkout.PaymentCrypto, nil)
	f.backend.onCreate = func() { f.sessions.Reset(uid) }

	placed, err := f.svc.Submit(context.Background(), user1)
	require.NoError(t, err)
	assert.Equal(t, "501", placed.ID)

	// The order exists on the backend, so the cart is still consumed.
	assert.Empty(t, f.carts.Get(uid))
	s, _ := f.sessions.Get(uid)
	assert.Equal(t, checkout.StateIdle, s.State)
}

func TestSubmit_ZelleRouting(t *testing.T) {
	tests := []struct {
		name          string
		routing       remote.Result[Routing]
		wantRouting   bool
		wantAwaitsOps bool
	}{
		{
			name:        "configured",
			routing:     remote.OK(Routing{Configured: true, Email: "pay@example.com", Name: "Shop"}),
			wantRouting: true,
		},
		{
			name:          "not configured",
			routing:       remote.OK(Routing{Configured: false}),
			wantRouting:   true,
			wantAwaitsOps: true,
		},
		{
			name:          "lookup failed",
			routing:       remote.Failed[Routing](errors.New("timeout")),
			wantAwaitsOps: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fill()
			f.confirm(t, checkout.PaymentZelle, nil)
			f.backend.routing = tt.routing

			placed, err := f.svc.Submit(context.Background(), user1)
			require.NoError(t, err)

			assert.Equal(t, tt.wantRouting, placed.Routing != nil)
			assert.Equal(t, tt.wantAwaitsOps, placed.AwaitsRouting())
			require.Len(t, f.notifier.placed, 1)
			assert.Equal(t, tt.wantAwaitsOps, f.notifier.placed[0].AwaitsRouting())
		})
	}
}
