// Package bookingapi is the HTTP client for the web-booking backend: closed
// dates, availability, payment intents, bookings and client-error reports.
//
// Every call is attempted once. Failures come back as apperr network errors.
package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"massagebook/internal/apperr"
	"massagebook/internal/calendar"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultClientErrorsPath = "/api/client-errors"
	maxErrorBody            = 512
)

// Options configures a Client.
type Options struct {
	BaseURL          string
	APIKey           string
	PractitionerID   string
	Timeout          time.Duration
	ClientErrorsPath string
}

// Client calls the booking backend.
type Client struct {
	baseURL          string
	apiKey           string
	practitionerID   string
	clientErrorsPath string
	httpClient       *http.Client
}

// New constructs a client from opts.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	path := opts.ClientErrorsPath
	if path == "" {
		path = defaultClientErrorsPath
	}
	return &Client{
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		apiKey:           opts.APIKey,
		practitionerID:   opts.PractitionerID,
		clientErrorsPath: path,
		httpClient:       &http.Client{Timeout: timeout},
	}
}

// PractitionerID returns the practitioner bookings are made against.
func (c *Client) PractitionerID() string { return c.practitionerID }

// ClosedDates fetches closed dates in [start, end]. Unparseable entries are skipped.
func (c *Client) ClosedDates(ctx context.Context, start, end calendar.Date) (calendar.DateSet, error) {
	q := url.Values{}
	q.Set("start_date", start.String())
	q.Set("end_date", end.String())
	endpoint := fmt.Sprintf("%s/api/web-booking/closed-dates?%s", c.baseURL, q.Encode())

	var data closedDatesData
	if err := c.getEnvelope(ctx, endpoint, &data); err != nil {
		return nil, apperr.Network("closed dates", err)
	}

	set := make(calendar.DateSet, len(data.ClosedDates))
	for _, s := range data.ClosedDates {
		d, err := calendar.ParseDate(s)
		if err != nil {
			continue
		}
		set[d] = struct{}{}
	}
	return set, nil
}

// AvailableSlots fetches open start times for a date and service.
func (c *Client) AvailableSlots(ctx context.Context, date calendar.Date, serviceType string) ([]Slot, error) {
	endpoint := fmt.Sprintf("%s/api/bookings/availability/%s/%s?service_type=%s",
		c.baseURL,
		url.PathEscape(c.practitionerID),
		url.PathEscape(date.String()),
		url.QueryEscape(serviceType),
	)

	var data availabilityData
	if err := c.getEnvelope(ctx, endpoint, &data); err != nil {
		return nil, apperr.Network("availability", err)
	}
	return data.AvailableSlots, nil
}

// CreatePaymentIntent opens a PaymentIntent on the backend.
func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	endpoint := c.baseURL + "/api/web-booking/create-payment-intent"

	var resp PaymentIntent
	if err := c.doPost(ctx, endpoint, req, &resp); err != nil {
		return nil, apperr.Network("create payment intent", err)
	}
	if resp.ClientSecret == "" || resp.PaymentIntentID == "" {
		msg := resp.Error
		if msg == "" {
			msg = "missing clientSecret or paymentIntentId"
		}
		return nil, apperr.Network("create payment intent", errors.New(msg))
	}
	return &resp, nil
}

// Book creates the booking. It is never retried.
func (c *Client) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	endpoint := c.baseURL + "/api/web-booking/book"
	if req.PractitionerID == "" {
		req.PractitionerID = c.practitionerID
	}

	var env envelope
	if err := c.doPost(ctx, endpoint, req, &env); err != nil {
		return nil, apperr.Network("book", err)
	}
	if !env.Success {
		return nil, apperr.Network("book", errors.New(env.reason()))
	}

	var result BookingResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return nil, apperr.Network("book", fmt.Errorf("decode data: %w", err))
	}
	if result.ConfirmationCode() == "" {
		return nil, apperr.Network("book", errors.New("response has no session id or receipt"))
	}
	return &result, nil
}

// ReportClientError forwards an error record. Callers treat it as fire-and-forget.
func (c *Client) ReportClientError(ctx context.Context, report ClientErrorReport) error {
	if err := c.doPost(ctx, c.baseURL+c.clientErrorsPath, report, nil); err != nil {
		return apperr.Network("report client error", err)
	}
	return nil
}

// HealthCheck checks that the backend answers on /healthz.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getEnvelope(ctx context.Context, endpoint string, data any) error {
	var env envelope
	if err := c.doGet(ctx, endpoint, &env); err != nil {
		return err
	}
	if !env.Success {
		return errors.New(env.reason())
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
