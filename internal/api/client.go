package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Client calls the server's REST endpoints through the auth-gated HTTP
// client. It is constructed once and safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an API client rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// Friends fetches the full friends list.
func (c *Client) Friends(ctx context.Context) ([]Friend, error) {
	var friends []Friend
	if err := c.get(ctx, "/api/friend/friends", &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// FriendProfile fetches a single friend's profile.
func (c *Client) FriendProfile(ctx context.Context, uid string) (*Friend, error) {
	var friend Friend
	if err := c.get(ctx, "/api/friend/profile/"+url.PathEscape(uid), &friend); err != nil {
		return nil, err
	}
	return &friend, nil
}

// SendFriendRequest asks the server to create a friend request.
func (c *Client) SendFriendRequest(ctx context.Context, friendID string) error {
	return c.post(ctx, "/api/friends/request", map[string]string{"friendId": friendID})
}

// Groups fetches the groups the user belongs to.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.get(ctx, "/api/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// JoinGroup joins a group.
func (c *Client) JoinGroup(ctx context.Context, groupID string) error {
	return c.post(ctx, "/api/groups/join", map[string]string{"groupId": groupID})
}

// LeaveGroup leaves a group.
func (c *Client) LeaveGroup(ctx context.Context, groupID string) error {
	return c.post(ctx, "/api/groups/leave", map[string]string{"groupId": groupID})
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("request failed",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if len(body) == 0 {
		return ErrEmptyBody
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Code != 0 {
		return &StatusError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
