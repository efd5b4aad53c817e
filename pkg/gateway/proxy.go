package gateway

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Proxy streams a request through to a sandbox's bare IP without buffering
// the body, forwarding every header except Host, and reports 503 on
// connect failure rather than touching the session record.
type Proxy struct {
	client *http.Client
	port   int
}

// defaultSandboxPort is the port every sandbox container listens on in
// production; NewProxy defaults to it when port is unset so callers don't
// need to plumb a config value through just to get the standard behavior.
const defaultSandboxPort = 80

// NewProxy returns a Proxy whose upstream connections are bounded by
// timeout and directed at the given sandbox port (0 means
// defaultSandboxPort).
func NewProxy(timeout time.Duration, port int) *Proxy {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if port <= 0 {
		port = defaultSandboxPort
	}
	return &Proxy{
		port: port,
		client: &http.Client{
			Timeout: timeout,
			// Never follow redirects ourselves: the sandbox's redirect is
			// the client's concern, not ours to rewrite.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Serve proxies r to addr (a bare pod IP) and streams the upstream response
// back through w. It returns the status code written, for metrics.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, addr string) int {
	if addr == "" {
		http.Error(w, "session pod not reachable", http.StatusServiceUnavailable)
		return http.StatusServiceUnavailable
	}

	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	target := fmt.Sprintf("http://%s%s", net.JoinHostPort(addr, fmt.Sprintf("%d", p.port)), path)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		http.Error(w, "failed to build upstream request", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	upstreamReq.Header = r.Header.Clone()
	upstreamReq.Header.Del("Host")
	upstreamReq.Host = addr

	resp, err := p.client.Do(upstreamReq)
	if err != nil {
		http.Error(w, "session pod not reachable", http.StatusServiceUnavailable)
		return http.StatusServiceUnavailable
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)

	return resp.StatusCode
}
