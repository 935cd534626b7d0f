// Package action is the outbound half of the gateway protocol: every action
// is an HTTP POST of URL-encoded form parameters to http://host:port/<action>.
//
// Client.Call is synchronous. Client.Go runs the call on its own goroutine and
// hands back a channel, which is how robots send messages from event
// listeners without blocking dispatch.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/keepmind9/cqbot/internal/logger"
	"github.com/keepmind9/cqbot/pkg/constants"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyOperation is returned when an action name is blank
	ErrEmptyOperation = errors.New("action: empty operation name")
	// ErrCallAborted is delivered by Go when the call panicked
	ErrCallAborted = errors.New("action: call aborted")
)

// Response is the gateway's reply envelope
type Response struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"msg"`
	Wording string          `json:"wording"`

	// Body is the undecoded response body
	Body []byte `json:"-"`
}

// OK reports whether the gateway accepted the action
func (r *Response) OK() bool {
	return r != nil && r.RetCode == 0 && (r.Status == "" || r.Status == "ok" || r.Status == "async")
}

// Result is what Go delivers
type Result struct {
	Response *Response
	Err      error
}

// Config addresses one account's action endpoint
type Config struct {
	Host        string
	Port        int
	Timeout     time.Duration
	AccessToken string
}

// BaseURL returns http://host:port
func (c Config) BaseURL() string {
	host := c.Host
	if host == "" {
		host = constants.DefaultHost
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// Client issues actions against one endpoint
type Client struct {
	rc      *resty.Client
	baseURL string
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient makes the client send through hc (tests, proxies)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.rc = resty.NewWithClient(hc)
	}
}

// NewClient builds a client for cfg
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{rc: resty.New(), baseURL: cfg.BaseURL()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultActionTimeout
	}
	c.rc.SetBaseURL(c.baseURL).SetTimeout(timeout)
	if cfg.AccessToken != "" {
		c.rc.SetAuthToken(cfg.AccessToken)
	}
	return c
}

// BaseURL returns the endpoint the client posts to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call posts params to /op and decodes the reply. Transport failures and
// non-2xx statuses are errors; a 2xx reply with a failing retcode is not.
func (c *Client) Call(ctx context.Context, op string, params map[string]string) (*Response, error) {
	op = strings.Trim(op, "/ ")
	if op == "" {
		return nil, ErrEmptyOperation
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetFormData(params).
		Post("/" + op)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", op, err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("action %s: unexpected status %d: %s", op, resp.StatusCode(), truncate(resp.String(), 200))
	}

	out := &Response{Body: resp.Body()}
	if len(out.Body) > 0 {
		// Some gateway builds answer with an empty or non-JSON body; the
		// status code already told us the call succeeded.
		_ = json.Unmarshal(out.Body, out)
	}
	return out, nil
}

// Go runs Call in the background. The returned channel receives exactly one
// Result and may be ignored; failures are logged either way.
func (c *Client) Go(op string, params map[string]string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		fields := logrus.Fields{"action": op, "endpoint": c.baseURL}
		res := Result{Err: ErrCallAborted}
		defer func() { ch <- res }()
		defer logger.Recover("action-call", fields)

		resp, err := c.Call(context.Background(), op, params)
		if err != nil {
			logger.WithFields(fields).WithError(err).Warn("action-call-failed")
		} else if !resp.OK() {
			logger.WithFields(fields).WithFields(logrus.Fields{
				"status":  resp.Status,
				"retcode": resp.RetCode,
			}).Warn("action-rejected-by-gateway")
		}
		res = Result{Response: resp, Err: err}
	}()
	return ch
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
