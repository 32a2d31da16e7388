package ticketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
)

const (
	getTicketPath     = "get_ticket.php"
	updateTicketPath  = "update_ticket.php"
	forwardTicketPath = "update_status_with_subticket.php"
)

// APIError is a non-success response from the ticket API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ticket api responded %d", e.StatusCode)
	}
	return fmt.Sprintf("ticket api responded %d: %s", e.StatusCode, e.Message)
}

// TransportError covers network failures and responses that are not JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ticket api %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectionMessage returns the API supplied message of a rejected request.
// ok is false when err is not an *APIError.
func RejectionMessage(err error) (message string, ok bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message, true
	}
	return "", false
}

// UpdateRequest changes a ticket's status with a remark.
type UpdateRequest struct {
	ID           string
	Status       domain.TicketStatus
	UpdateRemark string
}

// Upload is a file attached to a forward request.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ForwardRequest escalates a ticket, optionally with an image.
type ForwardRequest struct {
	ID           string
	Status       domain.TicketStatus
	UpdateRemark string
	Image        *Upload
}

// Result is the acknowledgement of a successful update.
type Result struct {
	Message string
}

// Client talks to the remote ticket API. It never retries.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
	logger  *zap.Logger
}

// NewClient builds a client for the configured base URL.
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout(),
		http: &fasthttp.Client{
			Name:                "ticketdesk",
			MaxIdleConnDuration: 30 * time.Second,
		},
		logger: logger,
	}
}

// GetTicket fetches a single ticket by id.
func (c *Client) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint(getTicketPath) + "?id=" + url.QueryEscape(id))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	body, err := c.roundTrip(ctx, "get ticket", req, resp)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return nil, &TransportError{Op: "get ticket", Err: errors.New("ticket payload is not an object")}
	}
	var payload ticketPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &TransportError{Op: "get ticket", Err: fmt.Errorf("decode ticket: %w", err)}
	}
	return payload.toDomain(), nil
}

// UpdateTicket posts a JSON status change.
func (c *Client) UpdateTicket(ctx context.Context, in UpdateRequest) (*Result, error) {
	body, err := json.Marshal(updatePayload{
		ID:           in.ID,
		Status:       string(in.Status),
		UpdateRemark: in.UpdateRemark,
	})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint(updateTicketPath))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.SetBody(body)

	respBody, err := c.roundTrip(ctx, "update ticket", req, resp)
	if err != nil {
		return nil, err
	}
	return &Result{Message: messageOf(respBody)}, nil
}

// ForwardTicket posts a multipart escalation.
func (c *Client) ForwardTicket(ctx context.Context, in ForwardRequest) (*Result, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"id", in.ID},
		{"Status", string(in.Status)},
		{"Update_remark", in.UpdateRemark},
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return nil, err
		}
	}
	if in.Image != nil {
		if err := writeFilePart(form, "Image", in.Image); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint(forwardTicketPath))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(form.FormDataContentType())
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.SetBody(buf.Bytes())

	respBody, err := c.roundTrip(ctx, "forward ticket", req, resp)
	if err != nil {
		return nil, err
	}
	return &Result{Message: messageOf(respBody)}, nil
}

// Ping checks that the ticket API host answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint(getTicketPath))
	req.Header.SetMethod(fasthttp.MethodHead)
	if err := c.do(ctx, req, resp); err != nil {
		return err
	}
	if resp.StatusCode() >= fasthttp.StatusInternalServerError {
		return fmt.Errorf("ticket api responded %d", resp.StatusCode())
	}
	return nil
}

// roundTrip performs the call and returns the body of a successful JSON response.
// Bodies that are not JSON count as transport failures, whatever the status.
func (c *Client) roundTrip(ctx context.Context, op string, req *fasthttp.Request, resp *fasthttp.Response) ([]byte, error) {
	start := time.Now()
	if err := c.do(ctx, req, resp); err != nil {
		c.logger.Warn("ticket api call failed", zap.String("op", op), zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}

	status := resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)
	c.logger.Debug("ticket api call",
		zap.String("op", op),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)))

	if !json.Valid(body) {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("unexpected non-JSON response (status %d)", status)}
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Message: messageOf(body)}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, hasDeadline := ctx.Deadline()
	if c.timeout > 0 {
		limit := time.Now().Add(c.timeout)
		if !hasDeadline || limit.Before(deadline) {
			deadline, hasDeadline = limit, true
		}
	}
	if hasDeadline {
		return c.http.DoDeadline(req, resp, deadline)
	}
	return c.http.Do(req, resp)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + path
}

func messageOf(body []byte) string {
	var msg messagePayload
	if err := json.Unmarshal(body, &msg); err != nil {
		return ""
	}
	return msg.Message
}

func writeFilePart(form *multipart.Writer, field string, upload *Upload) error {
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, quoteEscaper.Replace(upload.FileName)))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(upload.Data)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
