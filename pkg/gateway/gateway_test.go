package gateway

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/sessionpod/orchestrator/pkg/queue"
	"github.com/sessionpod/orchestrator/pkg/session"
	"github.com/sessionpod/orchestrator/pkg/store"
)

func newTestGateway(s *store.Fake, q *queue.Fake) *Gateway {
	return newTestGatewayWithPort(s, q, 0)
}

func newTestGatewayWithPort(s *store.Fake, q *queue.Fake, sandboxPort int) *Gateway {
	return New(Options{
		Store:            s,
		Queue:            q,
		LongPollBound:    200 * time.Millisecond,
		LongPollInterval: 10 * time.Millisecond,
		ProxyTimeout:     time.Second,
		SandboxPort:      sandboxPort,
	})
}

func TestServeHTTP_MissingUserID(t *testing.T) {
	gw := newTestGateway(store.NewFake(), queue.NewFake())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServeHTTP_AbsentPublishesAndTimesOut(t *testing.T) {
	s := store.NewFake()
	q := queue.NewFake()
	gw := newTestGateway(s, q)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 after long-poll timeout, got %d", rec.Code)
	}

	published := q.Published()
	if len(published) != 1 || published[0].ID != "alice" {
		t.Fatalf("expected exactly one publish for alice, got %+v", published)
	}

	rec2, exists, err := s.GetSession(req.Context(), "alice")
	if err != nil || !exists {
		t.Fatalf("expected a session record to exist: rec=%+v exists=%v err=%v", rec2, exists, err)
	}
	if rec2.Status != session.StatusInitiating {
		t.Fatalf("expected status initiating, got %q", rec2.Status)
	}
}

func TestServeHTTP_ReadyProxies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	parsed, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("failed to parse upstream URL: %v", err)
	}
	host, portStr, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		t.Fatalf("failed to split upstream host/port: %v", err)
	}
	portNum, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("failed to parse upstream port: %v", err)
	}

	s := store.NewFake()
	s.Seed("bob", session.Record{Status: session.StatusReady, Addr: host, HasLastActive: true, LastActive: time.Now()})
	gw := newTestGatewayWithPort(s, queue.NewFake(), portNum)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "bob")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from proxied upstream, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Upstream"); got != "yes" {
		t.Fatalf("expected upstream header to be forwarded, got %q", got)
	}
	if rec.Body.String() != "hello" {
		t.Fatalf("expected proxied body %q, got %q", "hello", rec.Body.String())
	}
}

func TestServeHTTP_FailedClearsRecordAndRepublishes(t *testing.T) {
	s := store.NewFake()
	s.Seed("carol", session.Record{Status: session.StatusFailed})
	q := queue.NewFake()
	gw := newTestGateway(s, q)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "carol")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 after re-initiating from failed, got %d", rec.Code)
	}

	published := q.Published()
	if len(published) != 1 || published[0].ID != "carol" {
		t.Fatalf("expected exactly one republish for carol, got %+v", published)
	}
}
