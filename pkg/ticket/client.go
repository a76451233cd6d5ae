package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/unisco/ticketlearn/pkg/errors"
	"github.com/unisco/ticketlearn/pkg/logging"
)

const (
	// DefaultBaseURL points at the production ticket platform.
	DefaultBaseURL = "https://unisticket.item.com/api/item-tickets/v1/iam"

	// messagePageSize is the page size used when draining a ticket's
	// message list. Reconstruction needs the complete set, so pages are
	// fetched sequentially until a short page terminates the loop.
	messagePageSize = 100

	defaultTimeout = 30 * time.Second
)

// Client is a stateless paginated client over the ticket platform API.
// It performs no retries and no caching; callers decide retry policy.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a ticket API client authenticated with a static key.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New(errors.InvalidInput, "ticket api key is required")
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the platform's standard response wrapper. code carries an
// application-level status distinct from the HTTP status.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type recordPage struct {
	Records json.RawMessage `json:"records"`
}

type order struct {
	Column string `json:"column"`
	Asc    bool   `json:"asc"`
}

type pageRequest struct {
	Size   int         `json:"size"`
	Page   int         `json:"page"`
	Orders []order     `json:"orders,omitempty"`
	Input  interface{} `json:"input"`
}

// FetchTicketPage retrieves one page of tickets matching the filter.
// The second return value reports whether more pages may exist: it is a
// record-count heuristic, so the caller must tolerate an empty next page.
func (c *Client) FetchTicketPage(ctx context.Context, page, size int, filter ListFilter) ([]Ticket, bool, error) {
	body := pageRequest{Size: size, Page: page, Input: filter}

	var tickets []Ticket
	if err := c.post(ctx, c.baseURL+"/tickets/page", body, &tickets); err != nil {
		return nil, false, errors.WithFields(err, errors.Fields{"page": page})
	}

	logging.GetLogger().Debug(ctx, "fetched ticket page %d (%d records)", page, len(tickets))
	return tickets, len(tickets) == size, nil
}

// FetchMessagePage retrieves one page of a ticket's messages, newest first.
func (c *Client) FetchMessagePage(ctx context.Context, ticketID ID, page, size int) ([]Message, bool, error) {
	body := pageRequest{
		Size:   size,
		Page:   page,
		Orders: []order{{Column: "id", Asc: false}},
		Input: map[string]interface{}{
			"types": []int{MessageTypeEmail, MessageTypeInternal, MessageTypeReply},
		},
	}

	var messages []Message
	url := fmt.Sprintf("%s/tickets/%s/messages", c.baseURL, ticketID)
	if err := c.post(ctx, url, body, &messages); err != nil {
		return nil, false, errors.WithFields(err, errors.Fields{"ticket_id": ticketID.String(), "page": page})
	}

	return messages, len(messages) == size, nil
}

// FetchAllMessages drains every message page of a ticket, strictly in
// sequence. The thread reconstruction downstream requires a complete
// message set; a partial set would silently yield a wrong thread.
func (c *Client) FetchAllMessages(ctx context.Context, ticketID ID) ([]Message, error) {
	var all []Message
	for page := 1; ; page++ {
		if err := errors.CheckContext(ctx, "fetch messages"); err != nil {
			return nil, err
		}

		messages, hasMore, err := c.FetchMessagePage(ctx, ticketID, page, messagePageSize)
		if err != nil {
			return nil, err
		}
		if len(messages) == 0 {
			break
		}
		all = append(all, messages...)
		if !hasMore {
			break
		}
	}

	logging.GetLogger().Debug(ctx, "fetched %d messages for ticket %s", len(all), ticketID)
	return all, nil
}

func (c *Client) post(ctx context.Context, url string, body, records interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.InvalidInput, "encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.InvalidInput, "build request")
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrap(err, errors.Timeout, "ticket api call timed out")
		}
		return errors.Wrap(err, errors.Transport, "ticket api call failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.Transport, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.WithFields(
			errors.New(errors.Transport, "ticket api returned non-success status"),
			errors.Fields{"status": resp.StatusCode})
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Wrap(err, errors.MalformedResponse, "decode response envelope")
	}
	if env.Code != 200 {
		return errors.WithFields(
			errors.New(errors.MalformedResponse, "ticket api returned error code"),
			errors.Fields{"code": env.Code, "msg": env.Msg})
	}

	var data recordPage
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return errors.Wrap(err, errors.MalformedResponse, "decode response data")
		}
	}
	if len(data.Records) == 0 {
		return nil
	}
	if err := json.Unmarshal(data.Records, records); err != nil {
		return errors.Wrap(err, errors.MalformedResponse, "decode records")
	}
	return nil
}
