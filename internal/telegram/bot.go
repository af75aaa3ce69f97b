// Package telegram connects the conversation to the Telegram Bot API.
package telegram

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xenking/shopbot/internal/chat"
	"github.com/xenking/shopbot/internal/conversation"
)

// API is the subset of the Bot API client used by Bot.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Dispatcher accepts inbound events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev conversation.Event) error
}

// Config configures the Bot.
type Config struct {
	Token string
	// Endpoint overrides the Bot API endpoint format.
	Endpoint string
	// PollTimeout is the long polling timeout.
	PollTimeout time.Duration
	// Rate limits outgoing API calls per second.
	Rate  float64
	Burst int
	Debug bool
}

func (c *Config) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = tgbotapi.APIEndpoint
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Minute
	}
	if c.Rate <= 0 {
		c.Rate = 25
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
}

// Bot receives updates by long polling and renders conversation replies.
type Bot struct {
	api         API
	limiter     *rate.Limiter
	pollTimeout time.Duration
}

// New connects to the Bot API. It fails when the token is rejected.
func New(cfg Config, lg *zap.Logger) (*Bot, error) {
	cfg.setDefaults()
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if err := tgbotapi.SetLogger(botLogger{lg: lg.Named("tgbotapi").Sugar()}); err != nil {
		return nil, errors.Wrap(err, "set logger")
	}

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	api.Debug = cfg.Debug
	lg.Info("Authorized", zap.String("bot", api.Self.UserName))

	return newBot(api, cfg), nil
}

func newBot(api API, cfg Config) *Bot {
	cfg.setDefaults()
	return &Bot{
		api:         api,
		limiter:     rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		pollTimeout: cfg.PollTimeout,
	}
}

// Run polls for updates and hands them to d until ctx is done.
func (b *Bot) Run(ctx context.Context, d Dispatcher) error {
	lg := zctx.From(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := toEvent(upd)
			if !ok {
				continue
			}
			err := d.Dispatch(ctx, ev)
			switch {
			case err == nil:
			case errors.Is(err, conversation.ErrBusy):
				lg.Warn("User queue is full", zap.Int64("user_id", ev.User.ID))
				b.Respond(ctx, ev, []chat.Reply{{Notice: "⏳ Please wait, still working on your previous request."}})
			default:
				lg.Error("Dispatch update", zap.Error(err), zap.Int("update_id", upd.UpdateID))
			}
		}
	}
}

// Respond renders replies for ev. A button press is always answered, even
// when no reply carries a notice.
func (b *Bot) Respond(ctx context.Context, ev conversation.Event, replies []chat.Reply) {
	lg := zctx.From(ctx)
	answered := false

	for _, r := range replies {
		if r.Text != "" {
			if err := b.render(ctx, ev, r); err != nil {
				lg.Warn("Render reply", zap.Error(err), zap.Int64("chat_id", ev.ChatID))
			}
		}
		if r.Notice == "" {
			continue
		}
		switch {
		case ev.CallbackID != "" && !answered:
			answered = true
			if err := b.answer(ctx, ev.CallbackID, r.Notice, r.Alert); err != nil {
				lg.Warn("Answer callback", zap.Error(err))
			}
		case ev.CallbackID == "" && r.NoticeOnly():
			if err := b.Send(ctx, ev.ChatID, chat.Message{Text: chat.Escape(r.Notice)}); err != nil {
				lg.Warn("Send notice", zap.Error(err), zap.Int64("chat_id", ev.ChatID))
			}
		}
	}

	if ev.CallbackID != "" && !answered {
		if err := b.answer(ctx, ev.CallbackID, "", false); err != nil {
			lg.Warn("Answer callback", zap.Error(err))
		}
	}
}

// render edits the originating message when asked to and possible, and
// sends a new message otherwise.
func (b *Bot) render(ctx context.Context, ev conversation.Event, r chat.Reply) error {
	if !r.Edit || ev.Kind != conversation.KindAction || ev.MessageID == 0 {
		return b.Send(ctx, ev.ChatID, r.Message)
	}

	cfg := tgbotapi.NewEditMessageText(ev.ChatID, ev.MessageID, r.Text)
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.DisableWebPagePreview = true
	if kb := keyboard(r.Keyboard); kb != nil {
		cfg.ReplyMarkup = kb
	}

	err := b.do(ctx, cfg)
	switch {
	case err == nil, notModified(err):
		return nil
	default:
		zctx.From(ctx).Debug("Edit failed, sending a new message", zap.Error(err))
		return b.Send(ctx, ev.ChatID, r.Message)
	}
}

// Send delivers msg to chatID.
func (b *Bot) Send(ctx context.Context, chatID int64, msg chat.Message) error {
	cfg := tgbotapi.NewMessage(chatID, msg.Text)
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.DisableWebPagePreview = true
	if kb := keyboard(msg.Keyboard); kb != nil {
		cfg.ReplyMarkup = *kb
	}
	if err := b.wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.Send(cfg); err != nil {
		return errors.Wrapf(err, "send to %d", chatID)
	}
	return nil
}

func (b *Bot) answer(ctx context.Context, id, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(id, text)
	cfg.ShowAlert = alert
	return b.do(ctx, cfg)
}

func (b *Bot) do(ctx context.Context, c tgbotapi.Chattable) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.Request(c); err != nil {
		return errors.Wrap(err, "request")
	}
	return nil
}

func (b *Bot) wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit")
	}
	return nil
}

// notModified reports the Bot API refusal to apply an edit that changes
// nothing.
func notModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func keyboard(rows [][]chat.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Action))
			}
		}
		out = append(out, buttons)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

type botLogger struct {
	lg *zap.SugaredLogger
}

func (l botLogger) Println(v ...any) {
	l.lg.Debugln(v...)
}

func (l botLogger) Printf(format string, v ...any) {
	l.lg.Debugf(format, v...)
}
