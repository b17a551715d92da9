// Package httpkit builds the outbound HTTP clients used to reach the
// language-model endpoint and the places provider. Both share the same
// dial and TLS timeouts and identify themselves with the build's
// User-Agent.
package httpkit

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/buildinfo"
)

const (
	dialTimeout         = 10 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	idleConnTimeout     = 90 * time.Second
	defaultHeaderWait   = 30 * time.Second
	defaultTimeout      = 30 * time.Second
)

// Config describes one outbound client.
type Config struct {
	// Timeout bounds a whole request. Negative disables it and leaves
	// deadline control to the request context; zero means 30s.
	Timeout time.Duration
	// HeaderTimeout bounds the wait for response headers. Model
	// endpoints may think for a while before answering. Zero means 30s.
	HeaderTimeout time.Duration
	// Retries is how many times a request that never reached the
	// server is re-dialed.
	Retries    int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// New builds an *http.Client from cfg.
func New(cfg Config) *http.Client {
	timeout := cfg.Timeout
	switch {
	case timeout == 0:
		timeout = defaultTimeout
	case timeout < 0:
		timeout = 0
	}
	header := cfg.HeaderTimeout
	if header <= 0 {
		header = defaultHeaderWait
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: header,
		IdleConnTimeout:       idleConnTimeout,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &transport{
			base:    base,
			ua:      buildinfo.UserAgent(),
			retries: cfg.Retries,
			delay:   cfg.RetryDelay,
			logger:  logger,
		},
	}
}

// transport stamps the User-Agent and re-dials requests that failed
// before reaching the server. Requests that reached the server are
// never resent, so tool side effects are not duplicated.
type transport struct {
	base    http.RoundTripper
	ua      string
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}

	resp, err := t.base.RoundTrip(req)
	for attempt := 1; attempt <= t.retries && err != nil && isDialError(err); attempt++ {
		// A body we cannot rewind cannot be resent.
		if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			break
		}
		t.logger.Debug("retrying request after dial failure",
			"method", req.Method,
			"host", req.URL.Host,
			"attempt", attempt,
			"error", err,
		)

		timer := time.NewTimer(t.delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("retry: rewind body: %w", bodyErr)
			}
			retry.Body = body
		}
		resp, err = t.base.RoundTrip(retry)
	}
	return resp, err
}

// isDialError reports errors raised before any byte reached the server.
// ECONNRESET is excluded: the server may already have acted.
func isDialError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EHOSTUNREACH, syscall.ENETUNREACH, syscall.ECONNREFUSED:
			return true
		}
	}
	return false
}
