package conversation

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

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

// Catalog reads products and categories.
type Catalog interface {
	ListProducts(ctx context.Context, f catalog.Filter) remote.Result[[]catalog.Product]
	GetProduct(ctx context.Context, id string) remote.Result[catalog.Product]
	ListCategories(ctx context.Context) remote.Result[[]catalog.Category]
}

// Backend is the part of the commerce backend used by the conversation.
type Backend interface {
	Catalog
	UpsertUser(ctx context.Context, u user.User) error
	ValidatePromo(ctx context.Context, code string) remote.Result[promo.Validation]
	UserOrders(ctx context.Context, userID int64) remote.Result[[]order.Summary]
	TrackActivity(ctx context.Context, e activity.Event)
}

// Orders places confirmed orders.
type Orders interface {
	Submit(ctx context.Context, u user.User) (*order.Placed, error)
}

// Operators receives support requests.
type Operators interface {
	SupportRequest(ctx context.Context, u user.User, subject, message string) notify.Report
}

// Config tunes the conversation.
type Config struct {
	// PageSize limits product listings.
	PageSize int
}

// Service turns events into replies. It is safe for concurrent use as long
// as events of one user are handled sequentially (see Dispatcher).
type Service struct {
	backend   Backend
	orders    Orders
	operators Operators
	carts     *cart.Store
	sessions  *checkout.Store
	support   *supportDrafts
	validate  *validator.Validate
	pageSize  int
}

// NewService creates a conversation Service.
func NewService(
	cfg Config,
	backend Backend,
	orders Orders,
	operators Operators,
	carts *cart.Store,
	sessions *checkout.Store,
) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return &Service{
		backend:   backend,
		orders:    orders,
		operators: operators,
		carts:     carts,
		sessions:  sessions,
		support:   newSupportDrafts(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		pageSize:  cfg.PageSize,
	}
}

// Handle processes a single event. Failures never escape: panics and
// unexpected errors are logged and answered with an apology.
func (s *Service) Handle(ctx context.Context, ev Event) (replies []chat.Reply) {
	lg := zctx.From(ctx)
	defer func() {
		if r := recover(); r != nil {
			lg.Error("Panic while handling event",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			replies = apology(ev)
		}
	}()

	replies, err := s.handle(ctx, ev)
	if err != nil {
		lg.Error("Handle event", zap.Error(err))
		return apology(ev)
	}
	return replies
}

func (s *Service) handle(ctx context.Context, ev Event) ([]chat.Reply, error) {
	switch ev.Kind {
	case KindCommand:
		return s.command(ctx, ev)
	case KindAction:
		return s.action(ctx, ev)
	case KindText:
		return s.text(ctx, ev)
	default:
		return nil, errors.Errorf("unknown event kind %d", ev.Kind)
	}
}

func (s *Service) command(ctx context.Context, ev Event) ([]chat.Reply, error) {
	switch ev.Command {
	case CommandStart:
		return s.start(ctx, ev), nil
	case CommandCart:
		return []chat.Reply{send(cartView(s.carts.Get(ev.User.ID)))}, nil
	case CommandOrders:
		return []chat.Reply{send(s.ordersView(ctx, ev.User.ID))}, nil
	case CommandHelp:
		return []chat.Reply{send(helpView())}, nil
	case CommandCancel:
		return []chat.Reply{send(s.cancel(ev))}, nil
	default:
		return []chat.Reply{send(unknownCommandView(ev.Command))}, nil
	}
}

func (s *Service) start(ctx context.Context, ev Event) []chat.Reply {
	s.sessions.Reset(ev.User.ID)
	s.support.clear(ev.User.ID)

	if err := s.backend.UpsertUser(ctx, ev.User); err != nil {
		zctx.From(ctx).Warn("Register user", zap.Error(err))
	}
	s.track(ctx, ev.User.ID, activity.BotStarted, nil)

	return []chat.Reply{send(welcomeView(ev.User))}
}

// cancel abandons checkout and support. The cart is kept.
func (s *Service) cancel(ev Event) chat.Message {
	s.sessions.Reset(ev.User.ID)
	s.support.clear(ev.User.ID)
	return cancelledView()
}

func (s *Service) action(ctx context.Context, ev Event) ([]chat.Reply, error) {
	a := ev.Action
	switch a.Name {
	case ActionMainMenu:
		s.sessions.Reset(ev.User.ID)
		s.support.clear(ev.User.ID)
		return []chat.Reply{edit(mainMenuView())}, nil
	case ActionCatalog:
		return s.showCategories(ctx, ev), nil
	case ActionCategory:
		return s.showCategory(ctx, ev, a.Arg(0)), nil
	case ActionProduct:
		return s.showProduct(ctx, ev, a.Arg(0)), nil
	case ActionAddToCart:
		return s.addToCart(ctx, ev, a.Arg(0)), nil
	case ActionCart:
		return []chat.Reply{edit(cartView(s.carts.Get(ev.User.ID)))}, nil
	case ActionCartItem:
		return s.showCartItem(ev, a.Arg(0)), nil
	case ActionCartQty:
		return s.setQuantity(ev, a.Arg(0), a.Arg(1)), nil
	case ActionRemove:
		s.carts.Remove(ev.User.ID, a.Arg(0))
		return []chat.Reply{withNotice(edit(cartView(s.carts.Get(ev.User.ID))), "Removed from cart")}, nil
	case ActionClearCart:
		s.carts.Clear(ev.User.ID)
		return []chat.Reply{withNotice(edit(cartView(nil)), "Cart cleared")}, nil
	case ActionCheckout:
		return s.beginCheckout(ctx, ev), nil
	case ActionSkip:
		st, ok := checkout.ParseState(a.Arg(0))
		if !ok {
			return []chat.Reply{notice(staleButton)}, nil
		}
		return s.step(ctx, ev, checkout.Skip{Field: st})
	case ActionPayment:
		m, ok := checkout.ParsePaymentMethod(a.Arg(0))
		if !ok {
			return []chat.Reply{alert("Unknown payment method")}, nil
		}
		return s.step(ctx, ev, checkout.Payment{Method: m})
	case ActionEnterPromocode:
		return s.step(ctx, ev, checkout.EnterPromo{})
	case ActionBackToConfirm:
		return s.step(ctx, ev, checkout.BackToConfirm{})
	case ActionConfirmOrder:
		return s.confirm(ctx, ev)
	case ActionCancel:
		return []chat.Reply{edit(s.cancel(ev))}, nil
	case ActionMyOrders:
		return []chat.Reply{edit(s.ordersView(ctx, ev.User.ID))}, nil
	case ActionHelp:
		return []chat.Reply{edit(helpView())}, nil
	case ActionContactAdmin:
		return s.beginSupport(ev), nil
	case ActionCancelSupport:
		return s.cancelSupport(ev), nil
	default:
		return []chat.Reply{notice(staleButton)}, nil
	}
}

func (s *Service) text(ctx context.Context, ev Event) ([]chat.Reply, error) {
	if d, ok := s.support.get(ev.User.ID); ok {
		return s.supportText(ctx, ev, d), nil
	}

	sess, _ := s.sessions.Get(ev.User.ID)
	switch {
	case sess.State == checkout.StateEnteringPromocode:
		return s.applyPromo(ctx, ev)
	case sess.State.CollectsText():
		return s.step(ctx, ev, checkout.Normalize(sess.State, ev.Text))
	default:
		return []chat.Reply{send(mainMenuView())}, nil
	}
}

func (s *Service) showCategories(ctx context.Context, ev Event) []chat.Reply {
	s.track(ctx, ev.User.ID, activity.CatalogViewed, nil)

	r := s.backend.ListCategories(ctx)
	switch {
	case r.Failed():
		return []chat.Reply{edit(unavailableView())}
	case !r.Found() || len(r.Value) == 0:
		return []chat.Reply{edit(emptyCatalogView())}
	default:
		return []chat.Reply{edit(categoriesView(r.Value))}
	}
}

func (s *Service) showCategory(ctx context.Context, ev Event, categoryID string) []chat.Reply {
	r := s.backend.ListProducts(ctx, catalog.Filter{CategoryID: categoryID, Limit: s.pageSize})
	switch {
	case r.Failed():
		return []chat.Reply{edit(unavailableView())}
	case !r.Found() || len(r.Value) == 0:
		return []chat.Reply{edit(emptyCategoryView())}
	default:
		return []chat.Reply{edit(productsView(r.Value))}
	}
}

func (s *Service) showProduct(ctx context.Context, ev Event, productID string) []chat.Reply {
	r := s.backend.GetProduct(ctx, productID)
	switch {
	case r.Failed():
		return []chat.Reply{alert(unavailableNotice)}
	case !r.Found():
		return []chat.Reply{alert("Product not found")}
	}

	s.track(ctx, ev.User.ID, activity.ProductViewed, map[string]string{"product_id": productID})
	return []chat.Reply{edit(productView(r.Value))}
}

func (s *Service) addToCart(ctx context.Context, ev Event, productID string) []chat.Reply {
	r := s.backend.GetProduct(ctx, productID)
	switch {
	case r.Failed():
		return []chat.Reply{alert(unavailableNotice)}
	case !r.Found():
		return []chat.Reply{alert("Product not found")}
	}

	p := r.Value
	s.carts.Add(ev.User.ID, p, 1)
	s.track(ctx, ev.User.ID, activity.AddedToCart, map[string]string{
		"product_id": p.ID,
		"price":      p.Price.StringFixed(2),
	})
	return []chat.Reply{notice(fmt.Sprintf("✅ %s added to cart", p.Name))}
}

func (s *Service) showCartItem(ev Event, productID string) []chat.Reply {
	it, ok := s.carts.Item(ev.User.ID, productID)
	if !ok {
		return []chat.Reply{withAlert(edit(cartView(s.carts.Get(ev.User.ID))), "This item is no longer in your cart")}
	}
	return []chat.Reply{edit(cartItemView(it))}
}

func (s *Service) setQuantity(ev Event, productID, qty string) []chat.Reply {
	n, err := parseQuantity(qty)
	if err != nil {
		return []chat.Reply{notice(staleButton)}
	}
	if !s.carts.UpdateQuantity(ev.User.ID, productID, n) {
		return []chat.Reply{withAlert(edit(cartView(s.carts.Get(ev.User.ID))), "This item is no longer in your cart")}
	}
	if n <= 0 {
		return []chat.Reply{withNotice(edit(cartView(s.carts.Get(ev.User.ID))), "Removed from cart")}
	}
	it, _ := s.carts.Item(ev.User.ID, productID)
	return []chat.Reply{withNotice(edit(cartItemView(it)), fmt.Sprintf("Quantity: %d", n))}
}

func (s *Service) beginCheckout(ctx context.Context, ev Event) []chat.Reply {
	if s.carts.Count(ev.User.ID) == 0 {
		return []chat.Reply{alert("Your cart is empty")}
	}

	s.support.clear(ev.User.ID)
	sess, _ := s.sessions.Begin(ev.User.ID)
	s.track(ctx, ev.User.ID, activity.CheckoutBegun, map[string]string{
		"total": s.carts.Total(ev.User.ID).StringFixed(2),
	})
	return []chat.Reply{edit(s.stepView(ev.User.ID, sess))}
}

// step feeds in to the user's checkout and renders the resulting step.
func (s *Service) step(ctx context.Context, ev Event, in checkout.Input) ([]chat.Reply, error) {
	sess, gen := s.sessions.Get(ev.User.ID)
	out, err := checkout.Transition(sess, in)

	var verr *checkout.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		return []chat.Reply{send(invalidAnswerView(verr, sess.State))}, nil
	case errors.Is(err, checkout.ErrStaleInput):
		return []chat.Reply{notice("Already done")}, nil
	case errors.Is(err, checkout.ErrUnexpectedInput),
		errors.Is(err, checkout.ErrFinished),
		errors.Is(err, checkout.ErrUnknownPayment):
		if !sess.State.IsActive() {
			return []chat.Reply{withAlert(edit(mainMenuView()), noCheckoutNotice)}, nil
		}
		return []chat.Reply{notice(staleButton)}, nil
	default:
		return nil, errors.Wrapf(err, "checkout step %s", sess.State)
	}
	if out.State == checkout.StateConfirmingOrder && s.carts.Count(ev.User.ID) == 0 {
		return s.cartEmptied(ev), nil
	}

	if !s.sessions.Commit(ev.User.ID, gen, out) {
		zctx.From(ctx).Info("Checkout step discarded after reset", zap.Stringer("state", sess.State))
		return nil, nil
	}
	return []chat.Reply{edit(s.stepView(ev.User.ID, out))}, nil
}

// stepView renders the prompt for the session's current step.
func (s *Service) stepView(userID int64, sess checkout.Session) chat.Message {
	switch sess.State {
	case checkout.StateSelectingPayment:
		return paymentView()
	case checkout.StateConfirmingOrder:
		return confirmationView(s.carts.Get(userID), sess)
	case checkout.StateEnteringPromocode:
		return promoPromptView()
	case checkout.StateCancelled:
		return cancelledView()
	default:
		return promptView(sess.State)
	}
}

// applyPromo validates the entered code remotely. Any outcome other than an
// accepted code returns to confirmation with the session otherwise intact.
func (s *Service) applyPromo(ctx context.Context, ev Event) ([]chat.Reply, error) {
	code := promo.NormalizeCode(ev.Text)
	if code == "" {
		return []chat.Reply{send(promoPromptView())}, nil
	}

	sess, gen := s.sessions.Get(ev.User.ID)
	res := s.backend.ValidatePromo(ctx, code)

	var (
		in   checkout.Input = checkout.PromoRejected{}
		note chat.Message
	)
	switch {
	case res.Failed():
		note = promoUnavailableView()
	case res.Found() && res.Value.Valid:
		d := res.Value.Discount
		if d.Code == "" {
			d.Code = code
		}
		in = checkout.PromoApplied{Discount: d}
		note = promoAppliedView(d)
	default:
		note = promoRejectedView(code, res.Value.Message)
	}

	out, err := checkout.Transition(sess, in)
	if err != nil {
		return nil, errors.Wrap(err, "apply promo result")
	}
	if s.carts.Count(ev.User.ID) == 0 {
		return s.cartEmptied(ev), nil
	}
	if !s.sessions.Commit(ev.User.ID, gen, out) {
		zctx.From(ctx).Info("Promo result discarded after reset", zap.String("code", code))
		return nil, nil
	}
	return []chat.Reply{
		send(note),
		send(confirmationView(s.carts.Get(ev.User.ID), out)),
	}, nil
}

func (s *Service) confirm(ctx context.Context, ev Event) ([]chat.Reply, error) {
	placed, err := s.orders.Submit(ctx, ev.User)
	switch {
	case err == nil:
		return []chat.Reply{edit(placedView(*placed))}, nil
	case errors.Is(err, order.ErrEmptyCart):
		return s.cartEmptied(ev), nil
	case errors.Is(err, checkout.ErrNotConfirming):
		if sess, _ := s.sessions.Get(ev.User.ID); sess.State.IsActive() {
			return []chat.Reply{withNotice(edit(s.stepView(ev.User.ID, sess)), staleButton)}, nil
		}
		return []chat.Reply{withAlert(edit(mainMenuView()), noCheckoutNotice)}, nil
	case errors.Is(err, order.ErrSubmitFailed):
		zctx.From(ctx).Warn("Order submission failed", zap.Error(err))
		sess, _ := s.sessions.Get(ev.User.ID)
		return []chat.Reply{withAlert(
			edit(confirmationView(s.carts.Get(ev.User.ID), sess)),
			"Could not create the order. Please try again.",
		)}, nil
	default:
		return nil, errors.Wrap(err, "submit order")
	}
}

// cartEmptied cancels a checkout whose cart was emptied after it began.
func (s *Service) cartEmptied(ev Event) []chat.Reply {
	s.sessions.Reset(ev.User.ID)
	if ev.Kind == KindAction {
		return []chat.Reply{withAlert(edit(cartView(nil)), emptyCartNotice)}
	}
	return []chat.Reply{send(cartView(nil))}
}

func (s *Service) ordersView(ctx context.Context, userID int64) chat.Message {
	r := s.backend.UserOrders(ctx, userID)
	switch {
	case r.Failed():
		return unavailableView()
	case !r.Found() || len(r.Value) == 0:
		return noOrdersView()
	default:
		return ordersView(r.Value)
	}
}

func (s *Service) track(ctx context.Context, userID int64, t activity.Type, data map[string]string) {
	s.backend.TrackActivity(ctx, activity.Event{UserID: userID, Type: t, Data: data})
}

func apology(ev Event) []chat.Reply {
	if ev.Kind == KindAction {
		return []chat.Reply{alert("Something went wrong. Please try again.")}
	}
	return []chat.Reply{send(apologyView())}
}
