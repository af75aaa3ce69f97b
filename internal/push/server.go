// Package push serves the HTTP endpoints the commerce backend calls to push
// messages to bot users.
package push

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/shopbot/internal/chat"
	"github.com/xenking/shopbot/internal/conversation"
	"github.com/xenking/shopbot/internal/domain/activity"
	"github.com/xenking/shopbot/pkg/httpmiddleware"
)

const (
	maxBodySize  = 64 << 10
	aliveText    = "Bot is alive! 🤖"
	uspsTrackURL = "https://tools.usps.com/go/TrackConfirmAction"
)

// Sender delivers a message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg chat.Message) error
}

// Tracker records user activity.
type Tracker interface {
	TrackActivity(ctx context.Context, e activity.Event)
}

// Probes serves liveness and readiness.
type Probes interface {
	LiveEndpoint(w http.ResponseWriter, r *http.Request)
	ReadyEndpoint(w http.ResponseWriter, r *http.Request)
}

// Config guards the admin endpoints.
type Config struct {
	// Secret is the expected bearer token. Empty disables the check.
	Secret string
	// Origins is the allow-list for Origin or Referer. Empty allows all.
	Origins   []string
	RateLimit httpmiddleware.RateLimitConfig
}

// Server relays backend pushes to users.
type Server struct {
	sender   Sender
	tracker  Tracker
	validate *validator.Validate
}

// NewServer creates a Server.
func NewServer(sender Sender, tracker Tracker) *Server {
	return &Server{
		sender:   sender,
		tracker:  tracker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router builds the HTTP routes. Health routes are public; /admin routes
// are guarded by cfg.
func (s *Server) Router(ctx context.Context, cfg Config, probes Probes) http.Handler {
	r := chi.NewRouter()

	r.Get("/", alive)
	r.Get("/health", alive)
	r.Get("/livez", probes.LiveEndpoint)
	r.Get("/readyz", probes.ReadyEndpoint)

	r.Route("/admin", func(r chi.Router) {
		r.Use(
			httpmiddleware.RateLimitWithCleanup(ctx, cfg.RateLimit),
			httpmiddleware.BearerSecret(cfg.Secret),
			httpmiddleware.AllowOrigins(cfg.Origins),
		)
		r.Post("/zelle", s.handle("zelle", s.zelle))
		r.Post("/tracking", s.handle("tracking", s.tracking, s.orderCompleted))
		r.Post("/reminder", s.handle("reminder", s.reminder))
	})

	return r
}

func alive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, aliveText)
}

// handle decodes and validates the payload, delivers the message built by
// compose and then runs the delivered hooks.
func (s *Server) handle(kind string, compose func(Payload) chat.Message, delivered ...func(context.Context, Payload)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		lg := zctx.From(ctx).With(zap.String("push", kind))

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			httpmiddleware.WriteError(w, http.StatusBadRequest, "Cannot read body")
			return
		}
		p, err := decodePayload(body)
		if err != nil {
			lg.Debug("Invalid push body", zap.Error(err))
			httpmiddleware.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if err := s.validate.Struct(p); err != nil {
			httpmiddleware.WriteError(w, http.StatusBadRequest, "Missing required fields")
			return
		}

		if err := s.sender.Send(ctx, p.TelegramID, compose(p)); err != nil {
			lg.Error("Push delivery failed", zap.Int64("user_id", p.TelegramID), zap.Error(err))
			httpmiddleware.WriteError(w, http.StatusInternalServerError, "Delivery failed")
			return
		}
		lg.Info("Push delivered",
			zap.Int64("user_id", p.TelegramID),
			zap.String("reminder_type", p.ReminderType),
		)

		for _, fn := range delivered {
			fn(ctx, p)
		}
		writeSuccess(w)
	}
}

func (s *Server) zelle(p Payload) chat.Message {
	return chat.Message{Text: p.Message, Keyboard: ordersKeyboard()}
}

func (s *Server) tracking(p Payload) chat.Message {
	var kb [][]chat.Button
	if p.TrackingNumber != "" {
		kb = append(kb, chat.Row(chat.LinkButton("📦 Check via USPS", TrackingURL(p.TrackingNumber))))
	}
	return chat.Message{Text: p.Message, Keyboard: append(kb, ordersKeyboard()...)}
}

// orderCompleted reports the order as completed once its tracking number
// reached the user.
func (s *Server) orderCompleted(ctx context.Context, p Payload) {
	if p.OrderID == "" {
		return
	}
	s.tracker.TrackActivity(ctx, activity.Event{
		UserID: p.TelegramID,
		Type:   activity.OrderCompleted,
		Data:   map[string]string{"order_id": p.OrderID},
	})
}

func (s *Server) reminder(p Payload) chat.Message {
	return chat.Message{Text: p.Message, Keyboard: conversation.MainMenuKeyboard()}
}

// TrackingURL links to the USPS tracking page for number.
func TrackingURL(number string) string {
	return uspsTrackURL + "?tLabels=" + url.QueryEscape(number)
}

func ordersKeyboard() [][]chat.Button {
	return [][]chat.Button{
		chat.Row(chat.ActionButton("📦 My orders", conversation.ActionMyOrders)),
		chat.Row(chat.ActionButton("🏠 Main menu", conversation.ActionMainMenu)),
	}
}

func writeSuccess(w http.ResponseWriter) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}
