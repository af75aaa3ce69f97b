package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/shopbot/internal/chat"
	"github.com/xenking/shopbot/internal/domain/activity"
	"github.com/xenking/shopbot/internal/domain/cart"
	"github.com/xenking/shopbot/internal/domain/catalog"
	"github.com/xenking/shopbot/internal/domain/checkout"
	"github.com/xenking/shopbot/internal/domain/order"
	"github.com/xenking/shopbot/internal/domain/promo"
	"github.com/xenking/shopbot/internal/domain/user"
	"github.com/xenking/shopbot/internal/notify"
	"github.com/xenking/shopbot/internal/remote"
)

var testUser = user.User{ID: 42, Username: "jdoe", FirstName: "John"}

type fakeBackend struct {
	mu sync.Mutex

	products   map[string]catalog.Product
	categories []catalog.Category
	failReads  bool
	panicRead  bool

	promos      map[string]promo.Validation
	promoFailed bool
	onValidate  func()
	promoCodes  []string

	summaries  []order.Summary
	createErrs []error
	requests   []order.Request
	routing    remote.Result[order.Routing]

	upserted   []user.User
	activities []activity.Event
}

func (b *fakeBackend) ListProducts(_ context.Context, f catalog.Filter) remote.Result[[]catalog.Product] {
	if b.failReads {
		return remote.Failed[[]catalog.Product](errors.New("down"))
	}
	var out []catalog.Product
	for _, p := range b.products {
		if f.CategoryID == "" || p.CategoryID == f.CategoryID {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return remote.Empty[[]catalog.Product]()
	}
	return remote.OK(out)
}

func (b *fakeBackend) GetProduct(_ context.Context, id string) remote.Result[catalog.Product] {
	if b.panicRead {
		panic("boom")
	}
	if b.failReads {
		return remote.Failed[catalog.Product](errors.New("down"))
	}
	p, ok := b.products[id]
	if !ok {
		return remote.Empty[catalog.Product]()
	}
	return remote.OK(p)
}

func (b *fakeBackend) ListCategories(context.Context) remote.Result[[]catalog.Category] {
	if b.failReads {
		return remote.Failed[[]catalog.Category](errors.New("down"))
	}
	if len(b.categories) == 0 {
		return remote.Empty[[]catalog.Category]()
	}
	return remote.OK(b.categories)
}

func (b *fakeBackend) UpsertUser(_ context.Context, u user.User) error {
	b.upserted = append(b.upserted, u)
	return nil
}

func (b *fakeBackend) ValidatePromo(_ context.Context, code string) remote.Result[promo.Validation] {
	b.promoCodes = append(b.promoCodes, code)
	if b.onValidate != nil {
		b.onValidate()
	}
	if b.promoFailed {
		return remote.Failed[promo.Validation](errors.New("down"))
	}
	v, ok := b.promos[code]
	if !ok {
		return remote.OK(promo.Validation{Valid: false, Message: "Unknown code"})
	}
	return remote.OK(v)
}

func (b *fakeBackend) UserOrders(context.Context, int64) remote.Result[[]order.Summary] {
	if b.failReads {
		return remote.Failed[[]order.Summary](errors.New("down"))
	}
	if len(b.summaries) == 0 {
		return remote.Empty[[]order.Summary]()
	}
	return remote.OK(b.summaries)
}

func (b *fakeBackend) TrackActivity(_ context.Context, e activity.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activities = append(b.activities, e)
}

func (b *fakeBackend) CreateOrder(_ context.Context, req order.Request) (order.Receipt, error) {
	b.requests = append(b.requests, req)
	if len(b.createErrs) > 0 {
		err := b.createErrs[0]
		b.createErrs = b.createErrs[1:]
		if err != nil {
			return order.Receipt{}, err
		}
	}
	return order.Receipt{ID: "1001"}, nil
}

func (b *fakeBackend) PaymentRouting(context.Context, int64) remote.Result[order.Routing] {
	return b.routing
}

func (b *fakeBackend) activityTypes() []activity.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]activity.Type, len(b.activities))
	for i, e := range b.activities {
		out[i] = e.Type
	}
	return out
}

type fakeOperators struct {
	placed    []order.Placed
	support   []string
	delivered int
}

func (o *fakeOperators) OrderPlaced(_ context.Context, _ user.User, p order.Placed) {
	o.placed = append(o.placed, p)
}

func (o *fakeOperators) SupportRequest(_ context.Context, _ user.User, subject, message string) notify.Report {
	o.support = append(o.support, subject+"|"+message)
	return notify.Report{Delivered: o.delivered}
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	svc      *Service
	backend  *fakeBackend
	ops      *fakeOperators
	carts    *cart.Store
	sessions *checkout.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := &fakeBackend{
		products: map[string]catalog.Product{
			"7": {ID: "7", Name: "Widget", Price: decimal.RequireFromString("25.00"), CategoryID: "1"},
			"8": {ID: "8", Name: "Gadget <XL>", Price: decimal.RequireFromString("5.50"), CategoryID: "2"},
		},
		categories: []catalog.Category{{ID: "1", Name: "Tools"}, {ID: "2", Name: "Toys"}},
		promos: map[string]promo.Validation{
			"SAVE10": {Valid: true, Discount: promo.Discount{Code: "SAVE10", Type: promo.DiscountPercentage, Value: decimal.NewFromInt(10)}},
		},
		routing: remote.OK(order.Routing{Configured: true, Email: "pay@shop.test", Phone: "+15550100", Name: "Shop LLC"}),
	}
	ops := &fakeOperators{delivered: 1}
	carts := cart.NewStore()
	sessions := checkout.NewStore(0)
	orders := order.NewService(carts, sessions, backend, ops, backend)

	return &fixture{
		t:        t,
		ctx:      zctx.Base(context.Background(), zaptest.NewLogger(t)),
		svc:      NewService(Config{PageSize: 10}, backend, orders, ops, carts, sessions),
		backend:  backend,
		ops:      ops,
		carts:    carts,
		sessions: sessions,
	}
}

func (f *fixture) action(data string) []chat.Reply {
	return f.svc.Handle(f.ctx, Event{User: testUser, ChatID: testUser.ID, Kind: KindAction, Action: ParseAction(data)})
}

func (f *fixture) text(s string) []chat.Reply {
	return f.svc.Handle(f.ctx, Event{User: testUser, ChatID: testUser.ID, Kind: KindText, Text: s})
}

func (f *fixture) command(c string) []chat.Reply {
	return f.svc.Handle(f.ctx, Event{User: testUser, ChatID: testUser.ID, Kind: KindCommand, Command: c})
}

func (f *fixture) state() checkout.State {
	sess, _ := f.sessions.Get(testUser.ID)
	return sess.State
}

func (f *fixture) session() checkout.Session {
	sess, _ := f.sessions.Get(testUser.ID)
	return sess
}

// toPayment fills the cart and walks checkout up to payment selection.
func (f *fixture) toPayment() {
	f.t.Helper()

	f.action("add_to_cart:7")
	f.action("add_to_cart:7")
	f.action("checkout")
	for _, answer := range []string{"John", "Doe", "123 Main St", "Springfield", "il", "62704", "skip", "-", "none"} {
		f.text(answer)
	}
	require.Equal(f.t, checkout.StateSelectingPayment, f.state())
}

// toConfirmation walks checkout up to confirmation.
func (f *fixture) toConfirmation(method string) {
	f.t.Helper()

	f.toPayment()
	f.action("payment:" + method)
	require.Equal(f.t, checkout.StateConfirmingOrder, f.state())
}

func texts(replies []chat.Reply) string {
	var b strings.Builder
	for _, r := range replies {
		b.WriteString(r.Text)
		b.WriteString(r.Notice)
		b.WriteByte('\n')
	}
	return b.String()
}

func hasAction(m chat.Message, action string) bool {
	for _, row := range m.Keyboard {
		for _, b := range row {
			if b.Action == action {
				return true
			}
		}
	}
	return false
}

func TestService_Start(t *testing.T) {
	f := newFixture(t)

	replies := f.command(CommandStart)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Welcome, <b>John</b>")
	assert.True(t, hasAction(replies[0].Message, ActionCatalog))
	assert.Equal(t, []user.User{testUser}, f.backend.upserted)
	assert.Equal(t, []activity.Type{activity.BotStarted}, f.backend.activityTypes())
}

func TestService_Catalog(t *testing.T) {
	f := newFixture(t)

	replies := f.action("catalog")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Edit)
	assert.True(t, hasAction(replies[0].Message, "category:1"))
	assert.True(t, hasAction(replies[0].Message, "category:2"))

	replies = f.action("category:2")
	require.Len(t, replies, 1)
	assert.True(t, hasAction(replies[0].Message, "product:8"))
	assert.False(t, hasAction(replies[0].Message, "product:7"))

	replies = f.action("product:8")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Gadget &lt;XL&gt;")
	assert.Contains(t, replies[0].Text, "$5.50")
	assert.True(t, hasAction(replies[0].Message, "add_to_cart:8"))
	assert.True(t, hasAction(replies[0].Message, "category:2"))
}

func TestService_CatalogUnavailable(t *testing.T) {
	f := newFixture(t)
	f.backend.failReads = true

	assert.Contains(t, texts(f.action("catalog")), "temporarily unavailable")
	assert.Contains(t, texts(f.action("category:1")), "temporarily unavailable")

	replies := f.action("product:7")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].NoticeOnly())
	assert.True(t, replies[0].Alert)
}

func TestService_EmptyCatalog(t *testing.T) {
	f := newFixture(t)
	f.backend.categories = nil

	assert.Contains(t, texts(f.action("catalog")), "No categories available yet")
	assert.Contains(t, texts(f.action("category:99")), "No products in this category yet")
}

func TestService_ProductNotFound(t *testing.T) {
	f := newFixture(t)

	for _, data := range []string{"product:404", "add_to_cart:404"} {
		replies := f.action(data)
		require.Len(t, replies, 1, data)
		assert.Equal(t, "Product not found", replies[0].Notice, data)
		assert.True(t, replies[0].Alert, data)
		assert.True(t, replies[0].NoticeOnly(), data)
	}
	assert.Empty(t, f.carts.Get(testUser.ID))
}

func TestService_AddToCart(t *testing.T) {
	f := newFixture(t)

	replies := f.action("add_to_cart:7")
	require.Len(t, replies, 1)
	assert.Equal(t, "✅ Widget added to cart", replies[0].Notice)
	assert.False(t, replies[0].Alert)

	f.action("add_to_cart:7")
	assert.Equal(t, 2, f.carts.Count(testUser.ID))
	assert.Equal(t, []activity.Type{activity.AddedToCart, activity.AddedToCart}, f.backend.activityTypes())

	replies = f.action("cart")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "2 × $25.00 = $50.00")
	assert.Contains(t, replies[0].Text, "Total: <b>$50.00</b>")
	assert.True(t, hasAction(replies[0].Message, ActionCheckout))
}

func TestService_CartItemQuantity(t *testing.T) {
	f := newFixture(t)
	f.action("add_to_cart:7")

	replies := f.action("cart_item:7")
	require.Len(t, replies, 1)
	assert.True(t, hasAction(replies[0].Message, "cart_qty:7:2"))
	assert.True(t, hasAction(replies[0].Message, "remove:7"))

	replies = f.action("cart_qty:7:3")
	require.Len(t, replies, 1)
	assert.Equal(t, "Quantity: 3", replies[0].Notice)
	assert.Equal(t, 3, f.carts.Count(testUser.ID))

	replies = f.action("cart_qty:7:0")
	require.Len(t, replies, 1)
	assert.Equal(t, "Removed from cart", replies[0].Notice)
	assert.Contains(t, replies[0].Text, "Your cart is empty")

	replies = f.action("cart_item:7")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Alert)

	replies = f.action("cart_qty:7:abc")
	require.Len(t, replies, 1)
	assert.Equal(t, staleButton, replies[0].Notice)
}

func TestService_ClearCart(t *testing.T) {
	f := newFixture(t)
	f.action("add_to_cart:7")
	f.action("add_to_cart:8")

	replies := f.action("clear_cart")
	require.Len(t, replies, 1)
	assert.Equal(t, "Cart cleared", replies[0].Notice)
	assert.Empty(t, f.carts.Get(testUser.ID))
}

func TestService_CheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	replies := f.action("checkout")
	require.Len(t, replies, 1)
	assert.Equal(t, "Your cart is empty", replies[0].Notice)
	assert.Equal(t, checkout.StateIdle, f.state())
}

func TestService_CheckoutValidation(t *testing.T) {
	f := newFixture(t)
	f.action("add_to_cart:7")
	f.action("checkout")
	for _, answer := range []string{"John", "Doe", "123 Main St", "Springfield", "IL"} {
		f.text(answer)
	}
	require.Equal(t, checkout.StateCollectingZip, f.state())

	replies := f.text("abc")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "⚠️ Zip")
	assert.Contains(t, replies[0].Text, "ZIP code")
	assert.Equal(t, checkout.StateCollectingZip, f.state())

	f.text("62704")
	assert.Equal(t, checkout.StateCollectingPhone, f.state())
}

func TestService_SkipTwice(t *testing.T) {
	f := newFixture(t)
	f.action("add_to_cart:7")
	f.action("checkout")
	for _, answer := range []string{"John", "Doe", "123 Main St", "Springfield", "IL", "62704"} {
		f.text(answer)
	}
	require.Equal(t, checkout.StateCollectingPhone, f.state())

	replies := f.action("skip:collecting_phone")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "apartment")
	assert.True(t, hasAction(replies[0].Message, "skip:collecting_apartment"))

	replies = f.action("skip:collecting_phone")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].NoticeOnly())
	assert.Equal(t, checkout.StateCollectingApartment, f.state())
	assert.Nil(t, f.session().Shipping.Phone)
}

func TestService_CancelKeepsCart(t *testing.T) {
	tests := []struct {
		name   string
		cancel func(f *fixture) []chat.Reply
	}{
		{name: "button", cancel: func(f *fixture) []chat.Reply { return f.action("cancel") }},
		{name: "command", cancel: func(f *fixture) []chat.Reply { return f.command(CommandCancel) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.action("add_to_cart:7")
			f.action("checkout")
			f.text("John")

			replies := tt.cancel(f)
			require.Len(t, replies, 1)
			assert.Contains(t, replies[0].Text, "Checkout cancelled")
			assert.Equal(t, checkout.StateIdle, f.state())
			assert.Equal(t, 1, f.carts.Count(testUser.ID))

			// Text after cancel is not taken as a checkout answer.
			replies = f.text("Doe")
			require.Len(t, replies, 1)
			assert.Contains(t, replies[0].Text, "Main menu")
		})
	}
}

func TestService_PromoApplied(t *testing.T) {
	f := newFixture(t)
	f.toConfirmation("zelle")

	replies := f.action("enter_promocode")
	require.Len(t, replies, 1)
	assert.Equal(t, checkout.StateEnteringPromocode, f.state())

	replies = f.text("  save10 ")
	require.Len(t, replies, 2)
	assert.Equal(t, []string{"SAVE10"}, f.backend.promoCodes)
	assert.Contains(t, replies[0].Text, "SAVE10")
	assert.Contains(t, replies[1].Text, "Discount: -$5.00")
	assert.Contains(t, replies[1].Text, "Total: $45.00")

	sess := f.session()
	assert.Equal(t, checkout.StateConfirmingOrder, sess.State)
	require.NotNil(t, sess.Promo)
	assert.Equal(t, "SAVE10", sess.Promo.Code)
}

func TestService_PromoNotApplied(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		failed bool
		want   string
	}{
		{name: "rejected", code: "nope", want: "is not valid"},
		{name: "backend down", code: "save10", failed: true, want: "cannot be checked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.toConfirmation("crypto")
			f.backend.promoFailed = tt.failed
			before := f.session()

			f.action("enter_promocode")
			replies := f.text(tt.code)
			require.Len(t, replies, 2)
			assert.Contains(t, replies[0].Text, tt.want)

			after := f.session()
			assert.Equal(t, checkout.StateConfirmingOrder, after.State)
			assert.Nil(t, after.Promo)
			assert.Equal(t, before.Shipping, after.Shipping)
			assert.Equal(t, before.Payment, after.Payment)
		})
	}
}

func TestService_PromoBack(t *testing.T) {
	f := newFixture(t)
	f.toConfirmation("zelle")
	f.action("enter_promocode")

	replies := f.action("back_to_confirmation")
	require.Len(t, replies, 1)
	assert.True(t, hasAction(replies[0].Message, ActionConfirmOrder))
	assert.Equal(t, checkout.StateConfirmingOrder, f.state())
	assert.Empty(t, f.backend.promoCodes)
}

func TestService_PromoResultAfterCancelDiscarded(t *testing.T) {
	f := newFixture(t)
	f.toConfirmation("zelle")
	f.action("enter_promocode")
	f.backend.onValidate = func() { f.sessions.Reset(testUser.ID) }

	replies := f.text("SAVE10")
	assert.Empty(t, replies)
	assert.Equal(t, checkout.StateIdle, f.state())
}

func TestService_ConfirmOrder(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		routing remote.Result[order.Routing]
		want    []string
	}{
		{
			name:    "zelle configured",
			method:  "zelle",
			routing: remote.OK(order.Routing{Configured: true, Email: "pay@shop.test", Phone: "+15550100", Name: "Shop LLC"}),
			want:    []string{"Order #1001 created", "pay@shop.test", "Shop LLC", "$50.00"},
		},
		{
			name:    "zelle awaiting details",
			method:  "zelle",
			routing: remote.Empty[order.Routing](),
			want:    []string{"Order #1001 created", "wait for payment details"},
		},
		{
			name:   "crypto",
			method: "crypto",
			want:   []string{"Order #1001 created", "Payment via crypto", "$50.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.backend.routing = tt.routing
			f.toConfirmation(tt.method)

			replies := f.action("confirm_order")
			require.Len(t, replies, 1)
			for _, want := range tt.want {
				assert.Contains(t, replies[0].Text, want)
			}
			assert.True(t, hasAction(replies[0].Message, ActionMyOrders))
			assert.Empty(t, f.carts.Get(testUser.ID))
			assert.Equal(t, checkout.StateIdle, f.state())
			require.Len(t, f.ops.placed, 1)
			assert.Equal(t, "1001", f.ops.placed[0].ID)
		})
	}
}

func TestService_ConfirmRetryAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.toConfirmation("zelle")
	f.backend.createErrs = []error{errors.New("connection reset")}

	replies := f.action("confirm_order")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Alert)
	assert.Contains(t, replies[0].Notice, "Could not create the order")
	assert.True(t, hasAction(replies[0].Message, ActionConfirmOrder))
	assert.Equal(t, checkout.StateConfirmingOrder, f.state())
	assert.Equal(t, 2, f.carts.Count(testUser.ID))
	assert.Empty(t, f.ops.placed)

	replies = f.action("confirm_order")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Order #1001 created")

	require.Len(t, f.backend.requests, 2)
	assert.NotEmpty(t, f.backend.requests[0].IdempotencyKey)
	assert.Equal(t, f.backend.requests[0].IdempotencyKey, f.backend.requests[1].IdempotencyKey)
}

func TestService_ConfirmEmptyCart(t *testing.T) {
	f := newFixture(t)
	f.toConfirmation("zelle")
	f.carts.Clear(testUser.ID)

	replies := f.action("confirm_order")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Alert)
	assert.Contains(t, replies[0].Text, "Your cart is empty")
	assert.Equal(t, checkout.StateIdle, f.state())
	assert.Empty(t, f.backend.requests)
}

func TestService_CartClearedDuringCheckout(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		last  func(f *fixture) []chat.Reply
		alert bool
	}{
		{
			name:  "payment selected",
			setup: func(f *fixture) { f.toPayment() },
			last:  func(f *fixture) []chat.Reply { return f.action("payment:zelle") },
			alert: true,
		},
		{
			name: "back to confirmation",
			setup: func(f *fixture) {
				f.toConfirmation("zelle")
				f.action("enter_promocode")
			},
			last:  func(f *fixture) []chat.Reply { return f.action("back_to_confirmation") },
			alert: true,
		},
		{
			name: "promo entered",
			setup: func(f *fixture) {
				f.toConfirmation("crypto")
				f.action("enter_promocode")
			},
			last: func(f *fixture) []chat.Reply { return f.text("SAVE10") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			f.action("clear_cart")

			replies := tt.last(f)
			require.Len(t, replies, 1)
			assert.Contains(t, replies[0].Text, "Your cart is empty")
			assert.False(t, hasAction(replies[0].Message, ActionConfirmOrder))
			assert.Equal(t, tt.alert, replies[0].Alert)
			if tt.alert {
				assert.Equal(t, emptyCartNotice, replies[0].Notice)
			}
			assert.Equal(t, checkout.StateIdle, f.state())
			assert.Empty(t, f.backend.requests)
		})
	}
}

func TestService_ConfirmWhileEnteringPromo(t *testing.T) {
	f := newFixture(t)
	f.toConfirmation("zelle")
	f.action("enter_promocode")

	replies := f.action("confirm_order")
	require.Len(t, replies, 1)
	assert.Equal(t, staleButton, replies[0].Notice)
	assert.False(t, replies[0].Alert)
	assert.Equal(t, checkout.StateEnteringPromocode, f.state())
	assert.Empty(t, f.backend.requests)

	replies = f.text("SAVE10")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[1].Text, "Total: $45.00")
	assert.Equal(t, checkout.StateConfirmingOrder, f.state())
}

func TestService_ConfirmTwice(t *testing.T) {
	f := newFixture(t)
	f.toConfirmation("crypto")

	f.action("confirm_order")
	replies := f.action("confirm_order")
	require.Len(t, replies, 1)
	assert.Equal(t, noCheckoutNotice, replies[0].Notice)
	assert.Len(t, f.backend.requests, 1)
}

func TestService_Orders(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, texts(f.command(CommandOrders)), "no orders yet")

	f.backend.summaries = []order.Summary{
		{ID: "17", Status: "shipped", Total: decimal.RequireFromString("12.5"), Items: 2},
	}
	out := texts(f.action("my_orders"))
	assert.Contains(t, out, "🚚 <b>#17</b> $12.50")
	assert.Contains(t, out, "2 items")
}

func TestService_Support(t *testing.T) {
	f := newFixture(t)

	replies := f.action("contact_admin")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "subject")

	assert.Contains(t, texts(f.text("Hi")), "between 3 and 100")
	assert.Contains(t, texts(f.text("Delivery")), "Subject: <b>Delivery</b>")
	assert.Contains(t, texts(f.text("too short")), "between 10 and 1000")

	replies = f.text("Where is my order #17?")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Your request was sent")
	assert.Equal(t, []string{"Delivery|Where is my order #17?"}, f.ops.support)

	// The flow is over; further text goes to the menu.
	assert.Contains(t, texts(f.text("hello again")), "Main menu")
}

func TestService_SupportUndelivered(t *testing.T) {
	f := newFixture(t)
	f.ops.delivered = 0

	f.action("contact_admin")
	f.text("Payment")
	assert.Contains(t, texts(f.text("I paid twice for one order")), "could not be delivered")
}

func TestService_SupportCancelled(t *testing.T) {
	f := newFixture(t)
	f.action("contact_admin")
	f.text("Payment")

	assert.Contains(t, texts(f.action("cancel_support")), "Support request cancelled")
	f.text("I paid twice for one order")
	assert.Empty(t, f.ops.support)
}

func TestService_SupportAbandonsCheckout(t *testing.T) {
	f := newFixture(t)
	f.action("add_to_cart:7")
	f.action("checkout")

	f.action("contact_admin")
	assert.Equal(t, checkout.StateIdle, f.state())

	f.text("Question")
	f.text("Do you ship to Alaska?")
	assert.Len(t, f.ops.support, 1)
}

func TestService_PanicRecovered(t *testing.T) {
	f := newFixture(t)
	f.backend.panicRead = true

	replies := f.action("product:7")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Alert)
	assert.Contains(t, replies[0].Notice, "Something went wrong")
}

func TestService_UnknownInput(t *testing.T) {
	f := newFixture(t)

	replies := f.action("does_not_exist")
	require.Len(t, replies, 1)
	assert.Equal(t, staleButton, replies[0].Notice)

	assert.Contains(t, texts(f.command("weird")), "Unknown command /weird")

	replies = f.action("payment:paypal")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Alert)
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		data string
		want Action
	}{
		{data: "cart", want: Action{Name: "cart", Args: []string{}}},
		{data: "product:7", want: Action{Name: "product", Args: []string{"7"}}},
		{data: "cart_qty:7:3", want: Action{Name: "cart_qty", Args: []string{"7", "3"}}},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got := ParseAction(tt.data)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "", got.Arg(5))
		})
	}
}
