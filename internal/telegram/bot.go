// Package telegram drives the booking wizard from a Telegram chat. Each
// chat gets its own wizard session keyed "tg:<chat id>".
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"massagebook/internal/apperr"
	"massagebook/internal/booking"
	"massagebook/internal/calendar"
	"massagebook/internal/errlog"
	"massagebook/internal/pricing"
	"massagebook/internal/timeslots"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

const helpText = "Send /book to book a massage, /cancel to drop the booking in progress."

// Bot is a Telegram front end for the booking wizard.
type Bot struct {
	tg       telegramClient
	sessions *booking.SessionStore
	catalog  *pricing.Catalog
	errors   *errlog.Handler
	prompts  *promptStore
	logger   *zerolog.Logger
}

func New(
	token string,
	debug bool,
	sessions *booking.SessionStore,
	catalog *pricing.Catalog,
	errs *errlog.Handler,
	logger *zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return NewWithTelegramClient(&realTelegramClient{api: api}, sessions, catalog, errs, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(
	tg telegramClient,
	sessions *booking.SessionStore,
	catalog *pricing.Catalog,
	errs *errlog.Handler,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	return &Bot{
		tg:       tg,
		sessions: sessions,
		catalog:  catalog,
		errors:   errs,
		prompts:  newPromptStore(),
		logger:   logger,
	}, nil
}

func sessionKey(chatID int64) string { return fmt.Sprintf("tg:%d", chatID) }

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Telegram bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("chat_id", update.Message.Chat.ID).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/book"):
		b.startBooking(ctx, chatID)
		return
	case strings.HasPrefix(text, "/cancel"):
		b.cancel(ctx, chatID)
		return
	case strings.HasPrefix(text, "/help"):
		b.reply(chatID, helpText)
		return
	}

	if p, ok := b.prompts.get(chatID); ok {
		b.handlePromptAnswer(ctx, chatID, p, text)
		return
	}
	b.reply(chatID, helpText)
}

func (b *Bot) startBooking(ctx context.Context, chatID int64) {
	b.prompts.reset(chatID)
	wz := b.sessions.Reset(sessionKey(chatID))
	b.render(ctx, chatID, wz, wz.View())
}

func (b *Bot) cancel(ctx context.Context, chatID int64) {
	b.prompts.reset(chatID)
	wz, err := b.sessions.Get(sessionKey(chatID))
	if err != nil {
		b.reply(chatID, "There is no booking in progress. "+helpText)
		return
	}
	if _, err := wz.Cancel(); err != nil {
		b.respond(ctx, chatID, wz, wz.View(), err)
		return
	}
	b.reply(chatID, "Booking cancelled. Send /book to start again.")
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	_, _ = b.tg.Request(tgbotapi.NewCallback(cq.ID, ""))

	data := cq.Data
	if data == cbNoop {
		return
	}
	chatID := cq.Message.Chat.ID

	if data == cbCancel {
		b.cancel(ctx, chatID)
		return
	}

	wz, err := b.sessions.Get(sessionKey(chatID))
	if err != nil {
		b.reply(chatID, "This booking has expired. Send /book to start again.")
		return
	}

	var v booking.View
	switch {
	case strings.HasPrefix(data, cbService):
		v, err = wz.SelectService(strings.TrimPrefix(data, cbService))
		if err == nil {
			v, err = wz.Next()
		}
	case strings.HasPrefix(data, cbMonth):
		b.showMonth(ctx, chatID, wz, strings.TrimPrefix(data, cbMonth))
		return
	case strings.HasPrefix(data, cbDate):
		d, perr := calendar.ParseDate(strings.TrimPrefix(data, cbDate))
		if perr != nil {
			return
		}
		v, err = wz.SelectDate(ctx, d)
	case strings.HasPrefix(data, cbTime):
		v, err = wz.SelectTime(strings.TrimPrefix(data, cbTime))
		if err == nil {
			v, err = wz.Next()
		}
	case strings.HasPrefix(data, cbPay):
		m, perr := booking.ParsePaymentMethod(strings.TrimPrefix(data, cbPay))
		if perr != nil {
			return
		}
		v, err = wz.SelectPaymentMethod(m)
		if err == nil {
			v, err = wz.Next()
		}
	case data == cbConfirm:
		b.reply(chatID, "Booking your appointment...")
		v, err = wz.Submit(ctx)
	case data == cbBack:
		b.prompts.reset(chatID)
		v, err = wz.Previous()
	default:
		return
	}
	b.respond(ctx, chatID, wz, v, err)
}

func (b *Bot) showMonth(ctx context.Context, chatID int64, wz *booking.Wizard, raw string) {
	m, err := calendar.ParseYearMonth(raw)
	if err != nil {
		return
	}
	grid, err := wz.Calendar(ctx, m)
	if err != nil {
		b.respond(ctx, chatID, wz, wz.View(), err)
		return
	}
	b.sendKeyboard(chatID, "Choose a date:", calendarKeyboard(grid))
}

// respond reports err, if any, and then shows the wizard's current step.
func (b *Bot) respond(ctx context.Context, chatID int64, wz *booking.Wizard, v booking.View, err error) {
	if err != nil {
		if errors.Is(err, booking.ErrSubmitInProgress) {
			b.reply(chatID, "Your booking is being submitted. Please wait.")
			return
		}
		notice := b.errors.Report(ctx, err)
		if apperr.KindOf(err) == apperr.KindUnexpected {
			v = wz.Fail(err)
		}
		b.reply(chatID, formatNotice(notice))
	}
	b.render(ctx, chatID, wz, v)
}

func (b *Bot) render(ctx context.Context, chatID int64, wz *booking.Wizard, v booking.View) {
	switch v.Step {
	case booking.StepServiceSelection:
		services := b.catalog.All(false)
		views := make([]booking.ServiceView, 0, len(services))
		for _, s := range services {
			views = append(views, booking.NewServiceView(s))
		}
		b.sendKeyboard(chatID, "Which massage would you like to book?", serviceKeyboard(views))

	case booking.StepDateTimeSelection:
		if v.Date != "" && v.Slots.Status == timeslots.StatusReady {
			b.sendKeyboard(chatID, fmt.Sprintf("Available times on %s:", v.Date), slotsKeyboard(v.Slots.Buttons))
			return
		}
		text := "Choose a date:"
		if v.Date != "" && v.Slots.Message != "" {
			text = fmt.Sprintf("%s on %s. Choose another date:", v.Slots.Message, v.Date)
		}
		grid, err := wz.Calendar(ctx, calendar.YearMonth{})
		if err != nil {
			b.reply(chatID, formatNotice(b.errors.Report(ctx, err)))
			return
		}
		b.sendKeyboard(chatID, text, calendarKeyboard(grid))

	case booking.StepContactInfo:
		p := b.prompts.start(chatID)
		b.ask(chatID, p.field)

	case booking.StepPaymentInfo:
		b.sendKeyboard(chatID, "How would you like to pay?", paymentKeyboard(v.PaymentMethods))

	case booking.StepSummary:
		b.sendKeyboard(chatID, summaryText(v), summaryKeyboard())

	case booking.StepConfirmation:
		b.reply(chatID, confirmationText(v))
	}
}

func (b *Bot) handlePromptAnswer(ctx context.Context, chatID int64, p contactPrompt, text string) {
	var err error
	switch p.field {
	case booking.FieldName:
		err = booking.ValidateName(text)
	case booking.FieldEmail:
		err = booking.ValidateEmail(text)
	case booking.FieldPhone:
		err = booking.ValidatePhone(text)
	}
	if err != nil {
		b.reply(chatID, booking.NewErrorView(err).Message)
		b.ask(chatID, p.field)
		return
	}

	p, done := b.prompts.answer(chatID, text)
	if !done {
		b.ask(chatID, p.field)
		return
	}
	b.prompts.reset(chatID)

	wz, werr := b.sessions.Get(sessionKey(chatID))
	if werr != nil {
		b.reply(chatID, "This booking has expired. Send /book to start again.")
		return
	}
	v, err := wz.SetContact(p.contact)
	if err == nil {
		v, err = wz.Next()
	}
	b.respond(ctx, chatID, wz, v, err)
}

func (b *Bot) ask(chatID int64, field string) {
	var text string
	switch field {
	case booking.FieldName:
		text = "What is your full name?"
	case booking.FieldEmail:
		text = "What email should we send the confirmation to?"
	default:
		text = "What is the best phone number to reach you?"
	}
	b.sendKeyboard(chatID, text, tgbotapi.NewInlineKeyboardMarkup(navRow(true)))
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func formatNotice(n errlog.Notice) string {
	parts := []string{n.Title + ": " + n.Message}
	if n.Remediation != "" {
		parts = append(parts, n.Remediation)
	}
	return strings.Join(parts, "\n")
}

func summaryText(v booking.View) string {
	var sb strings.Builder
	sb.WriteString("Please review your booking:\n\n")
	if v.Service != nil {
		fmt.Fprintf(&sb, "%s (%d min) · %s\n", v.Service.Name, v.Service.DurationMinutes, v.Service.Price)
	}
	fmt.Fprintf(&sb, "%s at %s\n", v.Date, v.TimeLabel)
	fmt.Fprintf(&sb, "%s · %s · %s\n", v.Contact.Name, v.Contact.Email, v.Contact.Phone)
	if label, ok := paymentLabels[v.PaymentMethod]; ok {
		fmt.Fprintf(&sb, "Payment: %s\n", label)
	}
	if v.AlternativeInstructions != "" {
		sb.WriteString("\n" + v.AlternativeInstructions)
	}
	return sb.String()
}

func confirmationText(v booking.View) string {
	if v.Confirmation == nil {
		return "Your booking is confirmed."
	}
	return fmt.Sprintf("Your booking is confirmed! Confirmation code: %s", v.Confirmation.Code)
}

// contactPrompt tracks the three sequential contact questions.
type contactPrompt struct {
	field   string
	contact booking.Contact
}

type promptStore struct {
	mu sync.Mutex
	m  map[int64]*contactPrompt
}

func newPromptStore() *promptStore {
	return &promptStore{m: make(map[int64]*contactPrompt)}
}

func (s *promptStore) start(chatID int64) contactPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &contactPrompt{field: booking.FieldName}
	s.m[chatID] = p
	return *p
}

func (s *promptStore) get(chatID int64) (contactPrompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[chatID]
	if !ok {
		return contactPrompt{}, false
	}
	return *p, true
}

// answer stores text for the current field and moves to the next one. It
// reports done after the phone number.
func (s *promptStore) answer(chatID int64, text string) (contactPrompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[chatID]
	if !ok {
		return contactPrompt{}, false
	}
	switch p.field {
	case booking.FieldName:
		p.contact.Name = text
		p.field = booking.FieldEmail
	case booking.FieldEmail:
		p.contact.Email = text
		p.field = booking.FieldPhone
	case booking.FieldPhone:
		p.contact.Phone = text
		return *p, true
	}
	return *p, false
}

func (s *promptStore) reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}
