package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopbot/internal/domain/activity"
	"github.com/xenking/shopbot/internal/domain/cart"
	"github.com/xenking/shopbot/internal/domain/checkout"
	"github.com/xenking/shopbot/internal/domain/promo"
	"github.com/xenking/shopbot/internal/domain/user"
	"github.com/xenking/shopbot/internal/remote"
)

var (
	// ErrEmptyCart is returned when the cart was emptied after checkout began.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSubmitFailed matches every backend failure while creating an order.
	ErrSubmitFailed = errors.New("order submission failed")
)

// SubmitError wraps the backend failure of an order submission. Cart and
// checkout session are left untouched so the user can retry.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit order: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSubmitFailed) hold for every SubmitError.
func (e *SubmitError) Is(target error) bool { return target == ErrSubmitFailed }

// Backend creates orders and resolves payment routing.
type Backend interface {
	CreateOrder(ctx context.Context, req Request) (Receipt, error)
	PaymentRouting(ctx context.Context, userID int64) remote.Result[Routing]
}

// Notifier informs operators about new orders. Delivery is best-effort.
type Notifier interface {
	OrderPlaced(ctx context.Context, u user.User, p Placed)
}

// Tracker reports activity events. Delivery is best-effort.
type Tracker interface {
	TrackActivity(ctx context.Context, e activity.Event)
}

// Service encapsulates order submission.
type Service struct {
	carts    *cart.Store
	sessions *checkout.Store
	backend  Backend
	notifier Notifier
	tracker  Tracker
}

// NewService creates an order Service.
func NewService(
	carts *cart.Store,
	sessions *checkout.Store,
	backend Backend,
	notifier Notifier,
	tracker Tracker,
) *Service {
	return &Service{
		carts:    carts,
		sessions: sessions,
		backend:  backend,
		notifier: notifier,
		tracker:  tracker,
	}
}

// Submit places the order for the user's confirmed checkout.
//
// The cart is re-read and totals recomputed at this point. On backend
// failure the returned error matches ErrSubmitFailed and nothing local
// changes. On success the cart is cleared, the session finished, operators
// notified and an order_created activity reported.
func (s *Service) Submit(ctx context.Context, u user.User) (*Placed, error) {
	lg := zctx.From(ctx)

	sess, gen := s.sessions.Get(u.ID)
	if sess.State != checkout.StateConfirmingOrder {
		return nil, checkout.ErrNotConfirming
	}

	items := s.carts.Get(u.ID)
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	totals := promo.Apply(cart.Sum(items), sess.Promo)
	req := Request{
		IdempotencyKey: sess.ID,
		UserID:         u.ID,
		Lines:          linesFromCart(items),
		PaymentMethod:  sess.Payment,
		Shipping:       sess.Shipping,
		Totals:         totals,
	}
	if sess.Promo != nil {
		req.Promocode = sess.Promo.Code
	}
	if p := sess.Shipping.Phone; p != nil {
		req.Notes = "Phone: " + *p
	}

	receipt, err := s.backend.CreateOrder(ctx, req)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}

	// The backend owns the order now; local state follows regardless of a
	// concurrent cancel.
	s.carts.Clear(u.ID)
	done, err := checkout.Transition(sess, checkout.Submitted{})
	if err != nil {
		return nil, errors.Wrap(err, "finish checkout")
	}
	if !s.sessions.Commit(u.ID, gen, done) {
		lg.Info("Checkout was reset while the order was submitted", zap.String("order_id", receipt.ID))
	}

	placed := &Placed{
		ID:            receipt.ID,
		Total:         totals.Total,
		Totals:        totals,
		PaymentMethod: sess.Payment,
		Lines:         req.Lines,
		Shipping:      sess.Shipping,
		Promo:         sess.Promo,
	}
	if receipt.Total.Valid {
		placed.Total = receipt.Total.Decimal
	}
	if sess.Payment == checkout.PaymentZelle {
		if r := s.backend.PaymentRouting(ctx, u.ID); r.Found() {
			placed.Routing = &r.Value
		}
	}

	s.notifier.OrderPlaced(ctx, u, *placed)
	s.tracker.TrackActivity(ctx, activity.Event{
		UserID: u.ID,
		Type:   activity.OrderCreated,
		Data: map[string]string{
			"order_id":       placed.ID,
			"total":          placed.Total.StringFixed(2),
			"payment_method": placed.PaymentMethod.String(),
		},
	})

	return placed, nil
}
