package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"vouchd/pkg/logger"
)

// Client is a REST client for the chat platform API. It implements
// Directory, RoleClient and Notifier over the connector's HTTP surface.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
}

// NewClient returns a Client for the given base URL and bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "vouchd",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// Member fetches a guild member. Returns ErrMemberNotFound on 404.
func (c *Client) Member(ctx context.Context, guildID, userID string) (*Member, error) {
	uri := fmt.Sprintf("%s/guilds/%s/members/%s", c.baseURL, guildID, userID)
	status, body, err := c.do(ctx, fasthttp.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusNotFound {
		return nil, ErrMemberNotFound
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("platform: member lookup %s: status %d", userID, status)
	}
	var m Member
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("platform: invalid member payload: %w", err)
	}
	if m.ID == "" {
		m.ID = userID
	}
	return &m, nil
}

// HasRole reports whether the member currently holds roleID. A member
// that does not exist holds no roles.
func (c *Client) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	m, err := c.Member(ctx, guildID, userID)
	if err != nil {
		if err == ErrMemberNotFound {
			return false, nil
		}
		return false, err
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

// GrantRole adds roleID to the member.
func (c *Client) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	uri := fmt.Sprintf("%s/guilds/%s/members/%s/roles/%s", c.baseURL, guildID, userID, roleID)
	status, _, err := c.do(ctx, fasthttp.MethodPut, uri, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("platform: grant role %s to %s: status %d", roleID, userID, status)
	}
	return nil
}

// RevokeRole removes roleID from the member.
func (c *Client) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	uri := fmt.Sprintf("%s/guilds/%s/members/%s/roles/%s", c.baseURL, guildID, userID, roleID)
	status, _, err := c.do(ctx, fasthttp.MethodDelete, uri, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("platform: revoke role %s from %s: status %d", roleID, userID, status)
	}
	return nil
}

// Notify posts a reply into the channel.
func (c *Client) Notify(ctx context.Context, channelID, replyToMessageID, text string) error {
	uri := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID)
	payload, err := json.Marshal(map[string]string{
		"content":  text,
		"reply_to": replyToMessageID,
	})
	if err != nil {
		return err
	}
	status, _, err := c.do(ctx, fasthttp.MethodPost, uri, payload)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("platform: notify channel %s: status %d", channelID, status)
	}
	return nil
}

// do issues one request with the client timeout, honoring an earlier
// context deadline when present.
func (c *Client) do(ctx context.Context, method, uri string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if len(body) > 0 {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	if timeout <= 0 {
		return 0, nil, ctx.Err()
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		logger.Debug("platform_request_failed", "method", method, "uri", uri, "error", err)
		return 0, nil, fmt.Errorf("platform: %s %s: %w", method, uri, err)
	}
	out := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), out, nil
}
