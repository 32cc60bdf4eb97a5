// Package fetch performs the GET requests the station needs: the transponder
// feed, the mode table, and TLE sets. Requests are retried on connection
// errors and 5xx responses; anything other than a non-empty 200 body is an
// error.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrTransport marks every failure to obtain a usable response.
	ErrTransport = errors.New("fetch: transport failure")
	ErrEmptyBody = fmt.Errorf("%w: empty body", ErrTransport)
	ErrTooLarge  = fmt.Errorf("%w: body exceeds size limit", ErrTransport)
)

// StatusError is returned when the server answers with anything but 200.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// Options configures a Client. Zero values fall back to the defaults noted
// on each field.
type Options struct {
	Timeout      time.Duration // per attempt, default 30s
	RetryMax     int           // additional attempts after the first
	RetryWaitMin time.Duration // default 1s
	RetryWaitMax time.Duration // default 30s
	MaxBytes     int64         // default 8 MiB
	UserAgent    string
	Logger       *log.Logger
}

// Client is safe for concurrent use. Each Get reads into its own buffer.
type Client struct {
	http      *retryablehttp.Client
	maxBytes  int64
	userAgent string
}

// New builds a Client from opts.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 8 << 20
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = opts.Timeout
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	// Hand the final response back so the status can be reported.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	} else {
		rc.Logger = nil
	}

	return &Client{
		http:      rc,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
	}
}

// Get downloads url and returns the complete body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 && resp.ContentLength <= c.maxBytes {
		buf.Grow(int(resp.ContentLength))
	}
	n, err := buf.ReadFrom(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTransport, url, err)
	}
	if n > c.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes): %s", ErrTooLarge, c.maxBytes, url)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBody, url)
	}
	return buf.Bytes(), nil
}
