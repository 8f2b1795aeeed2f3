package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentaflow/clinic-platform/pkg/logging"
)

const defaultTimeout = 8 * time.Second

var (
	dateFormat   = "2006-01-02"
	timeSlotRe   = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	maxErrorBody = 300
)

// TokenSource supplies the bearer token attached to every request. Token
// acquisition and refresh belong to the auth layer, not this client.
type TokenSource func(ctx context.Context) (string, error)

// Client talks to the clinic appointment backend over its REST contract.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	tokenSource TokenSource
	logger      *logging.Logger
}

// ClientConfig configures a backend Client.
type ClientConfig struct {
	BaseURL     string
	Timeout     time.Duration
	TokenSource TokenSource
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// NewClient creates a backend client. BaseURL is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("backend: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:     strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient:  httpClient,
		timeout:     timeout,
		tokenSource: cfg.TokenSource,
		logger:      logger,
	}, nil
}

// AvailableSlots fetches and normalizes the bookable slots for a query.
func (c *Client) AvailableSlots(ctx context.Context, q SlotQuery) ([]TimeSlot, error) {
	if err := validateSlotQuery(q); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("clinicId", q.ClinicID)
	params.Set("date", q.Date)
	if strings.TrimSpace(q.DentistID) != "" && q.DentistID != "any" {
		params.Set("dentistId", q.DentistID)
	}
	if q.Duration > 0 {
		params.Set("duration", strconv.Itoa(q.Duration))
	}

	status, body, err := c.do(ctx, http.MethodGet, "/available-slots", params, nil, "available-slots")
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(status, body, "available-slots"); err != nil {
		return nil, err
	}

	slots, err := parseSlotsResponse(body)
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, &Error{Kind: KindTransient, Op: "available-slots", Err: err}
	}
	return slots, nil
}

type conflictResponse struct {
	HasConflict bool   `json:"hasConflict"`
	Message     string `json:"message"`
}

// CheckConflict asks the backend whether a specific slot is still free.
// This is a point-in-time read: the backend remains the authority at write
// time. Any failure is returned as an error, never as "no conflict".
func (c *Client) CheckConflict(ctx context.Context, q ConflictQuery) (bool, error) {
	if err := validateConflictQuery(q); err != nil {
		return false, err
	}

	params := url.Values{}
	params.Set("date", q.Date)
	params.Set("timeSlot", q.TimeSlot)
	params.Set("clinicId", q.ClinicID)
	if strings.TrimSpace(q.DentistID) != "" {
		params.Set("dentistId", q.DentistID)
	}
	if strings.TrimSpace(q.ExcludeAppointmentID) != "" {
		params.Set("excludeAppointmentId", q.ExcludeAppointmentID)
	}

	status, body, err := c.do(ctx, http.MethodGet, "/check-conflict", params, nil, "check-conflict")
	if err != nil {
		return false, err
	}
	if err := classifyStatus(status, body, "check-conflict"); err != nil {
		return false, err
	}

	var resp conflictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, &Error{Kind: KindTransient, Op: "check-conflict", Err: fmt.Errorf("decode response: %w", err)}
	}
	if !resp.HasConflict && providerMissing(resp.Message) {
		return false, &Error{Kind: KindConfiguration, Op: "check-conflict", Message: resp.Message}
	}
	return resp.HasConflict, nil
}

// CreateAppointment submits a booking.
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/appointments", nil, req, "create-appointment")
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(status, body, "create-appointment"); err != nil {
		return nil, err
	}

	appt, err := decodeAppointment(body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: "create-appointment", Err: err}
	}
	return appt, nil
}

type autoBookEnvelope struct {
	Data *AutoBookResult `json:"data"`
	AutoBookResult
}

// AutoBook lets the backend assign the next open slot atomically.
func (c *Client) AutoBook(ctx context.Context, req AutoBookRequest) (*AutoBookResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/appointments/auto-book", nil, req, "auto-book")
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(status, body, "auto-book"); err != nil {
		return nil, err
	}

	var env autoBookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{Kind: KindTransient, Op: "auto-book", Err: fmt.Errorf("decode response: %w", err)}
	}
	result := env.AutoBookResult
	if env.Data != nil {
		result = *env.Data
	}
	if result.Appointment == nil {
		return nil, &Error{Kind: KindTransient, Op: "auto-book", Message: "backend returned no appointment"}
	}
	if result.BookedSlot != nil {
		normalized := normalizeSlot(rawSlot{
			Time:      result.BookedSlot.Time,
			Available: &result.BookedSlot.Available,
			DentistID: result.BookedSlot.DentistID,
			IsPeak:    &result.BookedSlot.IsPeak,
			StartTime: result.BookedSlot.StartTime,
			EndTime:   result.BookedSlot.EndTime,
		})
		result.BookedSlot = &normalized
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload any, op string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, &Error{Kind: KindTransient, Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, &Error{Kind: KindTransient, Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	if c.tokenSource != nil {
		token, err := c.tokenSource(ctx)
		if err != nil {
			return 0, nil, &Error{Kind: KindAuth, Op: op, Err: fmt.Errorf("acquire token: %w", err)}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return 0, nil, &Error{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
		}
		return 0, nil, &Error{Kind: KindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &Error{Kind: KindTransient, Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	return resp.StatusCode, body, nil
}

type errorBody struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func classifyStatus(status int, body []byte, op string) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	message := eb.Message
	if message == "" {
		message = eb.Error
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
		if len(message) > maxErrorBody {
			message = message[:maxErrorBody]
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindAuth, Op: op, Message: message, Status: status}
	case status == http.StatusNotFound:
		return &Error{Kind: KindUnavailable, Op: op, Message: "appointment service unavailable", Status: status}
	case status == http.StatusConflict:
		return &Error{Kind: KindConflict, Op: op, Message: message, Status: status}
	case status == http.StatusUnprocessableEntity:
		return &Error{Kind: KindValidation, Op: op, Message: message, Status: status, Fields: eb.Errors}
	default:
		return &Error{Kind: KindTransient, Op: op, Message: message, Status: status}
	}
}

func decodeAppointment(body []byte) (*Appointment, error) {
	var env struct {
		Data        *Appointment `json:"data"`
		Appointment *Appointment `json:"appointment"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Data != nil && env.Data.ID != "" {
			return env.Data, nil
		}
		if env.Appointment != nil && env.Appointment.ID != "" {
			return env.Appointment, nil
		}
	}
	var appt Appointment
	if err := json.Unmarshal(body, &appt); err != nil {
		return nil, fmt.Errorf("decode appointment: %w", err)
	}
	return &appt, nil
}

func validateSlotQuery(q SlotQuery) error {
	if strings.TrimSpace(q.ClinicID) == "" {
		return &Error{Kind: KindValidation, Op: "available-slots", Message: "clinicId is required"}
	}
	if !validDate(q.Date) {
		return &Error{Kind: KindValidation, Op: "available-slots", Message: fmt.Sprintf("date %q is not YYYY-MM-DD", q.Date)}
	}
	return nil
}

func validateConflictQuery(q ConflictQuery) error {
	if strings.TrimSpace(q.ClinicID) == "" {
		return &Error{Kind: KindValidation, Op: "check-conflict", Message: "clinicId is required"}
	}
	if !validDate(q.Date) {
		return &Error{Kind: KindValidation, Op: "check-conflict", Message: fmt.Sprintf("date %q is not YYYY-MM-DD", q.Date)}
	}
	if !timeSlotRe.MatchString(q.TimeSlot) {
		return &Error{Kind: KindValidation, Op: "check-conflict", Message: fmt.Sprintf("timeSlot %q is not HH:MM", q.TimeSlot)}
	}
	return nil
}

func validDate(date string) bool {
	if len(date) != len(dateFormat) {
		return false
	}
	_, err := time.Parse(dateFormat, date)
	return err == nil
}
