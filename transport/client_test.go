package transport_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/courier/batch"
	"github.com/xraph/courier/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDo_HeadersAndBody(t *testing.T) {
	var gotAuth, gotUA, gotContentType string
	var gotBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Server", "test")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c := transport.New(ts.URL,
		transport.WithToken("tk_secret"),
		transport.WithUserAgent("courier-test/0.1"),
		transport.WithLogger(testLogger()),
	)

	meta, body, err := c.Post(context.Background(), "/v1/messages", []byte(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if meta.Status != http.StatusCreated {
		t.Errorf("Status = %d, want 201", meta.Status)
	}
	if meta.Headers.Get("X-Server") != "test" {
		t.Errorf("X-Server header not propagated")
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
	if gotAuth != "Bearer tk_secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUA != "courier-test/0.1" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if string(gotBody) != `{"text":"hi"}` {
		t.Errorf("request body = %s", gotBody)
	}
}

func TestDo_NonSuccessStatusIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	c := transport.New(ts.URL, transport.WithLogger(testLogger()))
	meta, _, err := c.Get(context.Background(), "/v1/messages")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", meta.Status)
	}
}

func TestDo_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	ts.Close() // refuse connections

	c := transport.New(ts.URL, transport.WithLogger(testLogger()))
	if _, _, err := c.Get(context.Background(), "/"); err == nil {
		t.Fatal("expected error for refused connection")
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := transport.New(ts.URL, transport.WithLogger(testLogger()))
	if _, _, err := c.Get(ctx, "/slow"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestMetaRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
		ok    bool
	}{
		{"seconds", "30", 30 * time.Second, true},
		{"zero", "0", 0, true},
		{"missing", "", 0, false},
		{"garbage", "soon", 0, false},
		{"negative", "-5", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			m := &transport.Meta{Status: 429, Headers: h}
			got, ok := m.RetryAfter()
			if got != tt.want || ok != tt.ok {
				t.Errorf("RetryAfter() = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPostBatch(t *testing.T) {
	type ack struct {
		MessageID string `json:"message_id"`
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"code": 200, "headers": {}, "body": {"message_id": "msg_1"}},
			{"code": 204, "headers": {}}
		]`))
	}))
	defer ts.Close()

	c := transport.New(ts.URL, transport.WithLogger(testLogger()))
	expected := []batch.Expected{batch.For[ack](), batch.For[batch.NoContent]()}

	meta, resp, err := c.PostBatch(context.Background(), "/v1/batch", []byte(`[]`), expected)
	if err != nil {
		t.Fatalf("PostBatch: %v", err)
	}
	if meta.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", meta.Status)
	}

	first, ok := batch.Get[ack](resp, 0)
	if !ok || !first.HasBody() || first.Body.MessageID != "msg_1" {
		t.Errorf("first element not decoded: %+v, %v", first, ok)
	}
	second, ok := batch.Get[batch.NoContent](resp, 1)
	if !ok || second.StatusCode() != 204 {
		t.Errorf("second element not decoded: %+v, %v", second, ok)
	}
}

func TestPostBatch_CountMismatchFailsWholeBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"code": 200, "headers": {}}]`))
	}))
	defer ts.Close()

	c := transport.New(ts.URL, transport.WithLogger(testLogger()))
	expected := []batch.Expected{batch.For[batch.NoContent](), batch.For[batch.NoContent]()}

	meta, resp, err := c.PostBatch(context.Background(), "/v1/batch", nil, expected)
	if !errors.Is(err, batch.ErrParsingFailed) {
		t.Fatalf("err = %v, want ErrParsingFailed", err)
	}
	if resp != nil {
		t.Error("partial batch result returned on failure")
	}
	if meta == nil {
		t.Error("meta should still be returned so callers can inspect the status")
	}
}
