package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(retries int) *Client {
	return New(Options{
		Timeout:      2 * time.Second,
		RetryMax:     retries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		MaxBytes:     64,
		UserAgent:    "groundstation-test",
	})
}

func TestGet_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "groundstation-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	body, err := testClient(0).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(body))
}

func TestGet_BuffersAreIndependent(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if n.Add(1) == 1 {
			_, _ = w.Write([]byte("first-response"))
			return
		}
		_, _ = w.Write([]byte("2nd"))
	}))
	defer srv.Close()

	c := testClient(0)
	a, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	b, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "first-response", string(a))
	assert.Equal(t, "2nd", string(b))
}

func TestGet_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(0).Get(context.Background(), srv.URL)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := testClient(3).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testClient(0).Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrEmptyBody)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestGet_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 65)))
	}))
	defer srv.Close()

	_, err := testClient(0).Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestGet_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(0).Get(context.Background(), url)
	assert.ErrorIs(t, err, ErrTransport)
}
