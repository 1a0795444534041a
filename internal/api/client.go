// Package api provides the REST client for the chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/chatiitd/chatterm/internal/metrics"
	"github.com/chatiitd/chatterm/internal/models"
)

const defaultTimeout = 60 * time.Second

// Operation names recorded into the metrics collector.
const (
	OpExchangeCode = "exchange_code"
	OpListChats    = "list_chats"
	OpCreateChat   = "create_chat"
	OpGetChat      = "get_chat"
	OpDeleteChat   = "delete_chat"
	OpListMessages = "list_messages"
	OpSendMessage  = "send_message"
	OpStartChat    = "start_chat"
)

// Client talks to the chat backend. All methods except ExchangeCode
// authenticate with a bearer token; ExchangeCode includes cookies, which is
// why the client carries a cookie jar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	stats      *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records per-operation request statistics into collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Client) { c.stats = collector }
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// errorBody is the optional payload of a non-2xx response.
type errorBody struct {
	Message string `json:"message"`
}

// do performs one request against the backend. A non-empty token is sent as
// a bearer Authorization header. The response body is decoded into out when
// out is non-nil and the response succeeds.
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.stats != nil {
			c.stats.Record(op, time.Since(start), err != nil)
		}
	}()

	var reqBody io.Reader
	if body != nil {
		buf, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("marshal request: %w", mErr)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		"operation", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var eb errorBody
		if dErr := json.NewDecoder(resp.Body).Decode(&eb); dErr == nil {
			apiErr.Message = eb.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// ExchangeCode trades an OAuth authorization code for an access token via
// POST /auth/callback. A success-shaped response without a token is a
// protocol error (ErrMissingToken).
func (c *Client) ExchangeCode(ctx context.Context, code, state string) (string, error) {
	payload := map[string]string{"code": code}
	if state != "" {
		payload["state"] = state
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, OpExchangeCode, http.MethodPost, "/auth/callback", "", payload, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", ErrMissingToken
	}
	return result.AccessToken, nil
}

// ListChats returns the user's conversations.
func (c *Client) ListChats(ctx context.Context, token string) ([]models.Chat, error) {
	var chats []models.Chat
	if err := c.do(ctx, OpListChats, http.MethodGet, "/chats", token, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CreateChat creates an empty conversation. Title may be empty.
func (c *Client) CreateChat(ctx context.Context, token, title string) (*models.Chat, error) {
	payload := map[string]any{"title": nil}
	if title != "" {
		payload["title"] = title
	}

	var chat models.Chat
	if err := c.do(ctx, OpCreateChat, http.MethodPost, "/chats", token, payload, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChat fetches a single conversation.
func (c *Client) GetChat(ctx context.Context, token, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := c.do(ctx, OpGetChat, http.MethodGet, "/chats/"+url.PathEscape(chatID), token, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// DeleteChat removes a conversation.
func (c *Client) DeleteChat(ctx context.Context, token, chatID string) error {
	return c.do(ctx, OpDeleteChat, http.MethodDelete, "/chats/"+url.PathEscape(chatID), token, nil, nil)
}

// ListMessages returns the ordered message history of a conversation.
func (c *Client) ListMessages(ctx context.Context, token, chatID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.do(ctx, OpListMessages, http.MethodGet, "/chats/"+url.PathEscape(chatID)+"/messages", token, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a user turn to an existing conversation and returns the
// assistant's reply.
func (c *Client) SendMessage(ctx context.Context, token, chatID, content string) (*models.Message, error) {
	payload := map[string]string{"content": content}

	var msg models.Message
	if err := c.do(ctx, OpSendMessage, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages", token, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// StartChatResult is the response of the new-chat endpoint: the freshly
// created conversation plus the assistant's reply to the opening message.
type StartChatResult struct {
	Chat    models.Chat    `json:"chat"`
	Message models.Message `json:"message"`
}

// StartChat creates a conversation from its first message.
func (c *Client) StartChat(ctx context.Context, token, content string) (*StartChatResult, error) {
	payload := map[string]string{"content": content}

	var result StartChatResult
	if err := c.do(ctx, OpStartChat, http.MethodPost, "/chats/start", token, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
