// Package flowapi is the client for the remote conversational-flow service.
// The service drives the question sequence; this client only transports
// payloads and hands raw replies to the interpreter.
package flowapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/topproz/leadchat/internal/interpreter"
	"github.com/topproz/leadchat/pkg/logging"
)

// Message types the flow service distinguishes.
const (
	TypeMessage = "message"
	TypeButton  = "button"
)

// ErrMalformedReply means the flow service answered 200 but without a message
// array.
var ErrMalformedReply = errors.New("flowapi: reply has no message array")

// request is the wire shape of a flow call. Payload is either a plain string
// (typed text) or a button's opaque request object, passed through untouched.
type request struct {
	Payload   any    `json:"payload"`
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// Client posts conversation events to the flow service. Logged-in callers use
// a separate endpoint with a different question sequence.
type Client struct {
	newCustomerURL      string
	existingCustomerURL string
	httpClient          *http.Client
	logger              *logging.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a flow-service client for the two conversation endpoints.
func NewClient(newCustomerURL, existingCustomerURL string, opts ...ClientOption) *Client {
	c := &Client{
		newCustomerURL:      newCustomerURL,
		existingCustomerURL: existingCustomerURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send posts one conversation event and returns the raw reply. payload is a
// string for typed text and an opaque object for button clicks; msgType labels
// which of the two it is.
func (c *Client) Send(ctx context.Context, payload any, msgType, sessionID string, loggedIn bool) (*interpreter.RawReply, error) {
	body, err := json.Marshal(request{Payload: payload, Type: msgType, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("flowapi: marshal request: %w", err)
	}

	url := c.newCustomerURL
	if loggedIn {
		url = c.existingCustomerURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("flowapi: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending flow event", "type", msgType, "session_id", sessionID, "logged_in", loggedIn)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flowapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("flowapi: flow service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var reply interpreter.RawReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("flowapi: decode reply: %w", err)
	}
	if reply.Message == nil {
		return nil, ErrMalformedReply
	}

	c.logger.Debug("flow reply received", "session_id", sessionID, "messages", len(reply.Message), "buttons", len(reply.Buttons))
	return &reply, nil
}
