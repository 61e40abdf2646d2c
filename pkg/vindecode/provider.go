// Package vindecode adapts third-party VIN decoding APIs to the canonical
// vehicle record. Each adapter makes exactly one outbound call per Decode and
// never retries.
package vindecode

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/vin"
)

// Provider is a single VIN decoding backend.
type Provider interface {
	Name() string
	// Available reports whether the provider's credentials are configured.
	Available() bool
	// Decode resolves vin to a canonical record. The record's VIN is always
	// the vin argument, never a value echoed back by the vendor.
	Decode(ctx context.Context, vin string) (*model.Vehicle, error)
}

var errInvalidJSON = eris.New("vindecode: invalid json body")

// maxBodyBytes bounds how much of a vendor response is read.
const maxBodyBytes = 4 << 20

// Option configures an adapter.
type Option func(*client)

// WithHTTPClient sets the HTTP client used for vendor calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the vendor endpoint (used by tests and proxies).
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock sets the time source used for model-year decoding.
func WithClock(now func() time.Time) Option {
	return func(c *client) {
		if now != nil {
			c.now = now
		}
	}
}

// client holds the transport shared by every adapter.
type client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

func newClient(name, baseURL string, timeout time.Duration, opts []Option) client {
	c := client{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    timeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// checkVIN rejects malformed input before any network call.
func (c *client) checkVIN(v string) error {
	if !vin.Valid(v) {
		return apierr.New(apierr.InvalidVinFormat, c.name, "vin must be 17 characters without I, O or Q")
	}
	return nil
}

// get performs one GET against url under the adapter timeout and returns the
// body of a 2xx response. Transport failures and non-2xx statuses are mapped
// onto the error taxonomy.
func (c *client) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.UnknownProviderError, c.name, eris.Wrap(err, "vindecode: build request"))
	}
	req.Header.Set("Accept", "application/json")
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(c.name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apierr.FromTransport(c.name, err)
	}

	if kind := apierr.FromStatus(resp.StatusCode); kind != "" {
		return nil, &apierr.Error{
			Kind:     kind,
			Provider: c.name,
			Status:   resp.StatusCode,
			Detail:   snippet(body),
		}
	}

	zap.L().Debug("vindecode: raw response",
		zap.String("provider", c.name),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", body),
	)
	return body, nil
}

// malformed wraps a decode failure of a 2xx body.
func (c *client) malformed(err error) error {
	return apierr.Wrap(apierr.MalformedResponse, c.name, eris.Wrap(err, "vindecode: parse response"))
}

func (c *client) notFound(detail string) error {
	return apierr.New(apierr.NotFound, c.name, detail)
}

// snippet returns a short single-line excerpt of a response body.
func snippet(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
