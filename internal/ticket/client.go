package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kiranshivaraju/dqbank/internal/config"
)

// Sentinel errors for ticket service failures.
var (
	ErrTicketUnreachable = errors.New("ticket service unreachable")
	ErrTicketRejected    = errors.New("ticket service rejected request")
	ErrTicketTimeout     = errors.New("ticket service timeout")
)

// Client is the interface for the remediation ticket service. Tickets are
// filed when a fix is approved so the remediation gets tracked outside the
// bank; failures here are reported but never block the decision itself.
type Client interface {
	CreateTicket(ctx context.Context, req CreateTicketRequest) (Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (Ticket, error)
	ListTickets(ctx context.Context, status string) ([]Ticket, error)
	AddComment(ctx context.Context, ticketID, comment string) error
	Ready(ctx context.Context) error
}

// CreateTicketRequest defines parameters for filing a remediation ticket.
type CreateTicketRequest struct {
	Summary      string `json:"summary"`
	Description  string `json:"description"`
	Priority     string `json:"priority"`
	AffectedRows int    `json:"affected_rows"`
	FixSQL       string `json:"fix_sql,omitempty"`
	Assignee     string `json:"assignee,omitempty"`
}

// Ticket is a remediation ticket as reported by the ticket service.
type Ticket struct {
	ID           string    `json:"ticket_id"`
	Summary      string    `json:"summary"`
	Description  string    `json:"description"`
	Priority     string    `json:"priority"`
	AffectedRows int       `json:"affected_rows"`
	Status       string    `json:"status"`
	Assignee     string    `json:"assignee"`
	Labels       []string  `json:"labels"`
	CreatedAt    time.Time `json:"created_at"`
}

// HTTPClient implements Client against the ticket service's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	project string
	client  *http.Client
}

// NewHTTPClient creates a new ticket service client.
func NewHTTPClient(cfg config.TicketConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		project: cfg.Project,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) CreateTicket(ctx context.Context, req CreateTicketRequest) (Ticket, error) {
	if req.Priority == "" {
		req.Priority = "Medium"
	}

	body, err := json.Marshal(struct {
		Project string `json:"project"`
		CreateTicketRequest
	}{Project: c.project, CreateTicketRequest: req})
	if err != nil {
		return Ticket{}, fmt.Errorf("encoding ticket request: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/tickets", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return Ticket{}, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Ticket{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Ticket{}, fmt.Errorf("%w: status %d", ErrTicketRejected, resp.StatusCode)
	}

	var t Ticket
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return Ticket{}, fmt.Errorf("decoding ticket response: %w", err)
	}

	return t, nil
}

func (c *HTTPClient) GetTicket(ctx context.Context, ticketID string) (Ticket, error) {
	u := fmt.Sprintf("%s/api/v1/tickets/%s", c.baseURL, url.PathEscape(ticketID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Ticket{}, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Ticket{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Ticket{}, fmt.Errorf("%w: status %d", ErrTicketRejected, resp.StatusCode)
	}

	var t Ticket
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return Ticket{}, fmt.Errorf("decoding ticket response: %w", err)
	}

	return t, nil
}

func (c *HTTPClient) ListTickets(ctx context.Context, status string) ([]Ticket, error) {
	u := fmt.Sprintf("%s/api/v1/tickets", c.baseURL)
	if status != "" {
		u += "?status=" + url.QueryEscape(status)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrTicketRejected, resp.StatusCode)
	}

	var listResp struct {
		Tickets []Ticket `json:"tickets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("decoding tickets response: %w", err)
	}

	if listResp.Tickets == nil {
		return []Ticket{}, nil
	}
	return listResp.Tickets, nil
}

func (c *HTTPClient) AddComment(ctx context.Context, ticketID, comment string) error {
	body, err := json.Marshal(map[string]string{"text": comment})
	if err != nil {
		return fmt.Errorf("encoding comment: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/tickets/%s/comments", c.baseURL, url.PathEscape(ticketID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrTicketRejected, resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/health", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTicketUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ticket service not ready (status %d)", ErrTicketUnreachable, resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTicketTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTicketTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrTicketUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrTicketUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
