// Package proxy forwards client requests to the configured upstream and
// counts every upstream response status as backend traffic.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/giygas/httpstats/handlers"
	"github.com/giygas/httpstats/interfaces"
	"github.com/giygas/httpstats/logging"
	"github.com/giygas/httpstats/metrics"
	"github.com/go-chi/chi/v5/middleware"
)

// Compile-time check
var _ interfaces.Proxy = (*Proxy)(nil)

// Proxy is a reverse proxy bound to a single upstream
type Proxy struct {
	upstream *url.URL
	rp       *httputil.ReverseProxy
}

// New builds a proxy to upstream that reports backend statuses to rec
func New(upstream string, rec interfaces.StatsRecorder) (*Proxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream url must be absolute, got: %s", upstream)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	p := &Proxy{upstream: target}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = target.Host
		},
		Transport: transport,
		ModifyResponse: func(resp *http.Response) error {
			rec.RecordBackend(resp.StatusCode)
			return nil
		},
		ErrorHandler: p.handleError,
		ErrorLog:     logging.StdLogger(slog.LevelWarn),
	}

	return p, nil
}

// Upstream returns the upstream base URL
func (p *Proxy) Upstream() string {
	return p.upstream.String()
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

// handleError answers when no upstream response was received. Nothing is
// recorded as backend traffic; the 502/504 counts on the frontend only.
func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nobody reads this answer
		w.WriteHeader(499)
		return
	}

	metrics.UpstreamErrorsTotal.Inc()

	status, message := http.StatusBadGateway, "Upstream service unavailable"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		status, message = http.StatusGatewayTimeout, "Upstream service timed out"
	}

	logging.Warn("Upstream request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"upstream", p.upstream.Host,
		"status_code", status,
		"error", err,
	)

	handlers.RespondWithError(w, status, message)
}
