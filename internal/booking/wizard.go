package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"massagebook/internal/apperr"
	"massagebook/internal/bookingapi"
	"massagebook/internal/calendar"
	"massagebook/internal/metrics"
	"massagebook/internal/payment"
	"massagebook/internal/pricing"
	"massagebook/internal/timeslots"
)

// ErrSubmitInProgress rejects changes while a submission is running.
var ErrSubmitInProgress = errors.New("a booking submission is already in progress")

const defaultHorizonDays = 90

// Backend is the subset of the booking API the wizard uses.
type Backend interface {
	timeslots.Fetcher
	ClosedDates(ctx context.Context, start, end calendar.Date) (calendar.DateSet, error)
	Book(ctx context.Context, req bookingapi.BookingRequest) (*bookingapi.BookingResult, error)
}

// Payer takes card payments.
type Payer interface {
	Enabled() bool
	ElementsConfig() payment.ElementsConfig
	Pay(ctx context.Context, req payment.PayRequest) (*payment.Receipt, error)
}

// Deps are the wizard's collaborators. Payments may be nil when card
// payments are not configured.
type Deps struct {
	Catalog  *pricing.Catalog
	Backend  Backend
	Payments Payer
	Logger   zerolog.Logger
}

// Config holds the business rules.
type Config struct {
	Location     *time.Location
	BusinessDays []time.Weekday
	HorizonDays  int
	OfficePhone  string
	Now          func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.Local
	}
	if len(c.BusinessDays) == 0 {
		c.BusinessDays = []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
		}
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Wizard is one client's booking attempt. It is safe for concurrent use;
// no I/O happens while its mutex is held.
type Wizard struct {
	id    string
	deps  Deps
	cfg   Config
	log   zerolog.Logger
	slots *timeslots.View

	loadMu sync.Mutex // serializes the closed-dates fetch

	mu           sync.Mutex
	state        State
	month        calendar.YearMonth
	closed       calendar.DateSet
	closedLoaded bool
	submitting   bool
	lastErr      error
	result       *bookingapi.BookingResult
	updatedAt    time.Time
}

// NewWizard returns a wizard on the first step.
func NewWizard(id string, deps Deps, cfg Config) *Wizard {
	cfg = cfg.withDefaults()
	return &Wizard{
		id:        id,
		deps:      deps,
		cfg:       cfg,
		log:       deps.Logger.With().Str("session_id", id).Logger(),
		slots:     timeslots.NewView(deps.Backend),
		state:     NewState(),
		updatedAt: cfg.Now(),
	}
}

func (w *Wizard) ID() string { return w.id }

// State returns a copy of the current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// View projects the current state for presentation.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// IsExpired reports whether the wizard has been idle longer than timeout.
// A wizard with a submission in flight never expires.
func (w *Wizard) IsExpired(timeout time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.submitting && w.cfg.Now().Sub(w.updatedAt) > timeout
}

func (w *Wizard) today() calendar.Date {
	return calendar.DateOf(w.cfg.Now().In(w.cfg.Location))
}

// setStateLocked installs next and records the step change.
func (w *Wizard) setStateLocked(action string, next State) {
	prev := w.state.Step
	w.state = next
	w.lastErr = nil
	w.updatedAt = w.cfg.Now()

	if prev != next.Step {
		metrics.IncWizardTransition(prev.String(), next.Step.String())
		w.log.Debug().
			Str("action", action).
			Str("from", prev.String()).
			Str("to", next.Step.String()).
			Msg("wizard transition")
	}
}

func (w *Wizard) apply(action string, fn func(State) (State, error)) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return w.viewLocked(), ErrSubmitInProgress
	}
	next, err := fn(w.state)
	if err != nil {
		return w.viewLocked(), err
	}
	w.setStateLocked(action, next)
	return w.viewLocked(), nil
}

func (w *Wizard) recordErr(err error) {
	if err == nil || apperr.IsValidation(err) {
		return
	}
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

// closedDates fetches the closed-date horizon once. A failed fetch is
// attempted again on the next call; a successful one is kept for the
// wizard's lifetime.
func (w *Wizard) closedDates(ctx context.Context) (calendar.DateSet, error) {
	w.mu.Lock()
	if w.closedLoaded {
		set := w.closed
		w.mu.Unlock()
		return set, nil
	}
	w.mu.Unlock()

	w.loadMu.Lock()
	defer w.loadMu.Unlock()

	w.mu.Lock()
	if w.closedLoaded {
		set := w.closed
		w.mu.Unlock()
		return set, nil
	}
	w.mu.Unlock()

	today := w.today()
	set, err := w.deps.Backend.ClosedDates(ctx, today, today.AddDays(w.cfg.HorizonDays))
	if err != nil {
		w.log.Warn().Err(err).Msg("closed dates fetch failed")
		return nil, err
	}

	w.mu.Lock()
	w.closed = set
	w.closedLoaded = true
	w.mu.Unlock()
	return set, nil
}

// Calendar renders month. A zero month shows the month last displayed, or
// the current month.
func (w *Wizard) Calendar(ctx context.Context, month calendar.YearMonth) (calendar.Grid, error) {
	closed, err := w.closedDates(ctx)
	if err != nil {
		w.recordErr(err)
		return calendar.Grid{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	today := w.today()
	if month == (calendar.YearMonth{}) {
		month = w.month
	}
	if month == (calendar.YearMonth{}) {
		month = calendar.MonthOf(today)
	}
	w.month = month

	var selected *calendar.Date
	if w.state.Draft.HasDate() {
		d := w.state.Draft.Date
		selected = &d
	}

	return calendar.Render(calendar.Input{
		Month:        month,
		Today:        today,
		Closed:       closed,
		Selected:     selected,
		BusinessDays: w.cfg.BusinessDays,
	}), nil
}

// SelectService chooses a service by any of its identifiers.
func (w *Wizard) SelectService(id string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return w.viewLocked(), ErrSubmitInProgress
	}
	next, err := w.state.SelectService(w.deps.Catalog, id)
	if err != nil {
		return w.viewLocked(), err
	}
	if next.Draft.ServiceID != w.state.Draft.ServiceID {
		w.slots.Reset()
	}
	w.setStateLocked("select service", next)
	return w.viewLocked(), nil
}

// SelectDate picks a date and loads its slots, waiting for the result.
// A load replaced by a newer selection is not an error; the view then
// reflects the newer selection.
func (w *Wizard) SelectDate(ctx context.Context, d calendar.Date) (View, error) {
	w.mu.Lock()
	busy := w.submitting
	stepErr := w.state.requireStep("choose a date", StepDateTimeSelection)
	w.mu.Unlock()
	if busy {
		return w.View(), ErrSubmitInProgress
	}
	if stepErr != nil {
		return w.View(), stepErr
	}

	closed, err := w.closedDates(ctx)
	if err != nil {
		w.recordErr(err)
		return w.View(), err
	}

	today := w.today()
	if ok, reason := calendar.Selectable(d, today, closed, w.cfg.BusinessDays); !ok {
		return w.View(), apperr.Validation(FieldDate, dateMessage(reason))
	}
	if d.After(today.AddDays(w.cfg.HorizonDays)) {
		return w.View(), apperr.Validation(FieldDate, "That date is too far ahead to book online.")
	}

	w.mu.Lock()
	if w.submitting {
		defer w.mu.Unlock()
		return w.viewLocked(), ErrSubmitInProgress
	}
	next, err := w.state.SelectDate(d)
	if err != nil {
		defer w.mu.Unlock()
		return w.viewLocked(), err
	}

	snap := w.slots.Snapshot()
	keep := next.Draft.Date == w.state.Draft.Date &&
		snap.For(d, next.Draft.ServiceID) &&
		snap.Status != timeslots.StatusError
	w.setStateLocked("select date", next)
	w.month = calendar.MonthOf(d)

	var load *timeslots.Load
	if !keep {
		load = w.slots.Start(ctx, d, next.Draft.ServiceID)
	}
	w.mu.Unlock()

	if load != nil {
		if _, err := load.Wait(); err != nil && !errors.Is(err, timeslots.ErrSuperseded) {
			w.recordErr(err)
			return w.View(), err
		}
	}
	return w.View(), nil
}

func dateMessage(reason string) string {
	switch reason {
	case calendar.ReasonPast:
		return "Please choose a date that is not in the past."
	case calendar.ReasonClosed:
		return "The office is closed on that date."
	default:
		return "Appointments are not available on that day of the week."
	}
}

// SelectTime picks one of the slots loaded for the selected date.
func (w *Wizard) SelectTime(t string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return w.viewLocked(), ErrSubmitInProgress
	}

	snap := w.slots.Snapshot()
	if !snap.For(w.state.Draft.Date, w.state.Draft.ServiceID) || snap.Status != timeslots.StatusReady {
		return w.viewLocked(), apperr.Validation(FieldTime, "Available times have not been loaded for this date.")
	}
	slot, ok := w.slots.Select(t)
	if !ok {
		return w.viewLocked(), apperr.Validation(FieldTime, "That time is not available.")
	}

	next, err := w.state.SelectTime(slot)
	if err != nil {
		return w.viewLocked(), err
	}
	w.setStateLocked("select time", next)
	return w.viewLocked(), nil
}

// SetContact stores contact details without validating them.
func (w *Wizard) SetContact(c Contact) (View, error) {
	return w.apply("set contact", func(s State) (State, error) { return s.SetContact(c) })
}

func (w *Wizard) SetSpecialRequests(text string) (View, error) {
	return w.apply("set special requests", func(s State) (State, error) { return s.SetSpecialRequests(text) })
}

// SelectPaymentMethod switches the payment method. Card is refused when
// card payments are not configured.
func (w *Wizard) SelectPaymentMethod(m PaymentMethod) (View, error) {
	if m.RequiresCard() && !w.cardEnabled() {
		return w.View(), apperr.Validation(FieldPaymentMethod, "Card payments are not available right now.")
	}
	return w.apply("select payment method", func(s State) (State, error) { return s.SelectPaymentMethod(m) })
}

func (w *Wizard) SetCardStatus(cs CardStatus) (View, error) {
	return w.apply("set card status", func(s State) (State, error) { return s.SetCardStatus(cs) })
}

func (w *Wizard) cardEnabled() bool {
	return w.deps.Payments != nil && w.deps.Payments.Enabled()
}

// Next advances when the active step is valid.
func (w *Wizard) Next() (View, error) {
	return w.apply("next", State.Next)
}

// Previous goes back one step without clearing anything.
func (w *Wizard) Previous() (View, error) {
	return w.apply("previous", func(s State) (State, error) { return s.Previous(), nil })
}

// Cancel discards the draft and returns to the first step.
func (w *Wizard) Cancel() (View, error) {
	return w.apply("cancel", func(s State) (State, error) {
		w.resetLocked()
		return s.Reset(), nil
	})
}

// Fail discards the draft after a terminal error, keeping the error for display.
// It does nothing while a submission is in flight.
func (w *Wizard) Fail(err error) View {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return w.viewLocked()
	}
	w.resetLocked()
	w.setStateLocked("fail", w.state.Reset())
	w.lastErr = err
	return w.viewLocked()
}

func (w *Wizard) resetLocked() {
	w.slots.Reset()
	w.result = nil
	w.month = calendar.YearMonth{}
}

// Close cancels any in-flight slot load.
func (w *Wizard) Close() {
	w.slots.Reset()
}

// Submit books the appointment from the summary step. Card payments are
// charged first. Nothing is retried; on failure the wizard stays on the
// summary with the error recorded.
func (w *Wizard) Submit(ctx context.Context) (View, error) {
	w.mu.Lock()
	if w.submitting {
		defer w.mu.Unlock()
		return w.viewLocked(), ErrSubmitInProgress
	}
	if err := w.state.requireStep("submit the booking", StepSummary); err != nil {
		defer w.mu.Unlock()
		return w.viewLocked(), err
	}
	if err := w.state.ValidateAll(); err != nil {
		defer w.mu.Unlock()
		return w.viewLocked(), err
	}
	svc, err := w.deps.Catalog.Resolve(w.state.Draft.ServiceID)
	if err != nil {
		defer w.mu.Unlock()
		return w.viewLocked(), apperr.Unexpected(err)
	}
	draft := w.state.Draft
	w.submitting = true
	w.updatedAt = w.cfg.Now()
	w.mu.Unlock()

	result, err := w.submit(ctx, draft, svc)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false

	if err != nil {
		metrics.IncBookingSubmission("failed")
		w.lastErr = err
		w.updatedAt = w.cfg.Now()
		w.log.Warn().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("booking submission failed")
		return w.viewLocked(), err
	}

	next, err := w.state.Confirm(result.ConfirmationCode())
	if err != nil {
		return w.viewLocked(), apperr.Unexpected(err)
	}
	metrics.IncBookingSubmission("confirmed")
	w.result = result
	w.setStateLocked("submit", next)
	w.log.Info().
		Str("confirmation", next.Confirmation).
		Str("service", svc.ID).
		Str("payment_method", string(draft.PaymentMethod)).
		Msg("booking confirmed")
	return w.viewLocked(), nil
}

// rememberPayment records a successful charge on the draft. Mutations are
// refused while submitting, so the draft is still the one being charged.
func (w *Wizard) rememberPayment(intentID string) {
	w.mu.Lock()
	w.state.Draft.PaymentIntentID = intentID
	w.mu.Unlock()
}

func (w *Wizard) submit(ctx context.Context, d Draft, svc pricing.Service) (*bookingapi.BookingResult, error) {
	phone, err := NormalizePhone(d.Contact.Phone)
	if err != nil {
		return nil, err
	}

	amount := svc.Price().Cents()
	if d.PaymentMethod == PaymentComplimentary {
		amount = 0
	}

	req := bookingapi.BookingRequest{
		ServiceType: svc.ID,
		Date:        d.Date.String(),
		Time:        d.Slot.Time,
		Client: bookingapi.Customer{
			Name:  strings.Join(strings.Fields(d.Contact.Name), " "),
			Email: strings.TrimSpace(d.Contact.Email),
			Phone: phone,
		},
		PaymentMethod:   string(d.PaymentMethod),
		AmountCents:     amount,
		SpecialRequests: d.SpecialRequests,
	}

	switch {
	case d.PaymentMethod.RequiresCard() && d.Charged():
		req.PaymentIntentID = d.PaymentIntentID
		w.log.Info().Str("payment_intent", d.PaymentIntentID).Msg("reusing earlier card payment")
	case d.PaymentMethod.RequiresCard():
		if !w.cardEnabled() {
			return nil, apperr.Payment(payment.CodeUnavailable, "Card payments are not available right now.", nil)
		}
		receipt, err := w.deps.Payments.Pay(ctx, payment.PayRequest{
			AmountCents:     amount,
			ServiceType:     svc.ID,
			ClientName:      req.Client.Name,
			ClientEmail:     req.Client.Email,
			ScheduledFor:    req.Date + "T" + req.Time,
			PaymentMethodID: d.Card.PaymentMethodID,
		})
		if err != nil {
			return nil, err
		}
		req.PaymentIntentID = receipt.PaymentIntentID
		w.rememberPayment(receipt.PaymentIntentID)
	}

	result, err := w.deps.Backend.Book(ctx, req)
	if err != nil && req.PaymentIntentID != "" {
		w.log.Error().Err(err).
			Str("payment_intent", req.PaymentIntentID).
			Msg("card was charged but the booking was not created")
	}
	return result, err
}
