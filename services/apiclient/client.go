// Package apiclient wraps every call to the school REST backend.
//
// It is the single place where the bearer token and the school scope are attached,
// and the single place where an unauthorized response tears the session down.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
)

const defaultSchoolID = "1"

type Options struct {
	BaseURL         string
	DefaultSchoolID string
	// Timeout caps every call; zero or anything above core.APITimeout means core.APITimeout.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is the backend HTTP client.
type Client struct {
	baseURL  string
	schoolID string
	timeout  time.Duration
	rest     *rest.Client
	store    storage.Store
	nav      routes.Navigator
	logger   core.Logger
}

func New(opts Options, store storage.Store, nav routes.Navigator, logger core.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 || timeout > core.APITimeout {
		timeout = core.APITimeout
	}
	// copied so the caller's client keeps its own timeout
	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		httpClient = &c
	}
	httpClient.Timeout = timeout

	schoolID := opts.DefaultSchoolID
	if schoolID == "" {
		schoolID = defaultSchoolID
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		schoolID: schoolID,
		timeout:  timeout,
		rest:     &rest.Client{HTTPClient: httpClient},
		store:    store,
		nav:      nav,
		logger:   logger,
	}
}

// NewFromConfig builds a client from the app configuration.
func NewFromConfig(conf *core.Config, store storage.Store, nav routes.Navigator, logger core.Logger) *Client {
	return New(Options{
		BaseURL:         conf.API.BaseURL,
		DefaultSchoolID: conf.DefaultSchoolID,
		Timeout:         conf.API.Timeout,
	}, store, nav, logger)
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, params, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, nil, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, body, nil, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPatch, path, body, nil, out)
}

func (c *Client) Delete(ctx context.Context, path string, params map[string]string, out interface{}) error {
	return c.Do(ctx, http.MethodDelete, path, nil, params, out)
}

// Do sends one request and decodes a JSON response into out (when non-nil).
// It fails with *NetworkError, *HTTPError or ErrTimeout.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, params map[string]string, out interface{}) error {
	req := rest.Request{
		Method:      rest.Method(strings.ToUpper(method)),
		BaseURL:     c.baseURL + "/" + strings.TrimLeft(path, "/"),
		Headers:     c.headers(ctx),
		QueryParams: c.queryParams(ctx, params),
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		req.Body = data
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return c.transportError(ctx, req, err)
	}

	if res.StatusCode == http.StatusUnauthorized {
		c.unauthorized(ctx, req)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newHTTPError(res.StatusCode, res.Body)
	}

	if out != nil && strings.TrimSpace(res.Body) != "" {
		if err = json.Unmarshal([]byte(res.Body), out); err != nil {
			return errors.Wrapf(err, "decoding %s %s response", req.Method, path)
		}
	}
	return nil
}

func (c *Client) headers(ctx context.Context) map[string]string {
	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"X-Request-ID": uuid.NewString(),
	}
	if token := storage.GetString(ctx, c.store, storage.KeyToken); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return headers
}

// queryParams merges the persisted school scope into the caller's params.
func (c *Client) queryParams(ctx context.Context, params map[string]string) map[string]string {
	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	schoolID := storage.GetString(ctx, c.store, storage.KeySchoolID)
	if schoolID == "" {
		schoolID = c.schoolID
	}
	merged[storage.KeySchoolID] = schoolID
	return merged
}

func (c *Client) transportError(ctx context.Context, req rest.Request, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		c.logger.Warn(fmt.Sprintf("%s %s timed out", req.Method, req.BaseURL), err)
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return errors.Wrapf(ctx.Err(), "%s %s", req.Method, req.BaseURL)
	default:
		c.logger.Warn(fmt.Sprintf("%s %s: no response", req.Method, req.BaseURL), err)
		return &NetworkError{Err: err}
	}
}

// unauthorized drops the session and forces the login screen.
func (c *Client) unauthorized(ctx context.Context, req rest.Request) {
	// the teardown must survive a request context that is already done
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if err := c.store.Delete(ctx, storage.SessionKeys...); err != nil {
		c.logger.Error("clearing session after 401", err)
	}
	c.logger.Info(fmt.Sprintf("%s %s: unauthorized, session cleared", req.Method, req.BaseURL))
	if c.nav != nil {
		c.nav.Navigate(routes.LoginPath)
	}
}
