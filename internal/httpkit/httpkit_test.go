package httpkit

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestNew_Timeouts(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want time.Duration
	}{
		{name: "default", want: 30 * time.Second},
		{name: "custom", cfg: Config{Timeout: 5 * time.Second}, want: 5 * time.Second},
		{name: "disabled", cfg: Config{Timeout: -1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.cfg).Timeout; got != tt.want {
				t.Errorf("Timeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_UserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	resp, err := New(Config{}).Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "clubplanner/") {
		t.Errorf("User-Agent = %q, want clubplanner/ prefix", body)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "PlannerTest/1.0")
	resp2, err := New(Config{}).Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	body2, _ := io.ReadAll(resp2.Body)
	if string(body2) != "PlannerTest/1.0" {
		t.Errorf("User-Agent = %q, want the caller's header kept", body2)
	}
}

type flakyDialer struct {
	fails int32
	calls atomic.Int32
}

func (f *flakyDialer) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.fails {
		return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestTransport_RetriesDialFailures(t *testing.T) {
	tests := []struct {
		name      string
		fails     int32
		retries   int
		wantErr   bool
		wantCalls int32
	}{
		{name: "recovers", fails: 2, retries: 2, wantCalls: 3},
		{name: "gives up", fails: 5, retries: 2, wantErr: true, wantCalls: 3},
		{name: "no retries", fails: 1, retries: 0, wantErr: true, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &flakyDialer{fails: tt.fails}
			rt := &transport{base: base, ua: "test", retries: tt.retries, delay: time.Millisecond, logger: slog.New(slog.DiscardHandler)}
			req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
			_, err := rt.RoundTrip(req)
			if (err != nil) != tt.wantErr {
				t.Errorf("RoundTrip() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := base.calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestIsDialError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"refused", syscall.ECONNREFUSED, true},
		{"wrapped unreachable", &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}, true},
		{"reset", syscall.ECONNRESET, false},
		{"other", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDialError(tt.err); got != tt.want {
				t.Errorf("isDialError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
