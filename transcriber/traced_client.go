package transcriber

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// retryBackoff is the fixed pause before the single retry of a
// transient upload failure.
const retryBackoff = time.Second

type TracedClient struct {
	client *http.Client
	apiURL string
}

func NewTracedClient(apiURL string) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		apiURL: apiURL,
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	metrics := &NetworkMetrics{}
	var getConnStart, dnsStart, tcpStart, tlsStart time.Time
	var gotConn, wroteHeaders, wroteRequest, firstByte time.Time

	trace := &httptrace.ClientTrace{
		GetConn: func(_ string) { getConnStart = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			gotConn = time.Now()
			metrics.ConnWait = gotConn.Sub(getConnStart)
			metrics.ConnReused = info.Reused
		},
		DNSStart:          func(_ httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:           func(_ httptrace.DNSDoneInfo) { metrics.DNS = time.Since(dnsStart) },
		ConnectStart:      func(_, _ string) { tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { metrics.TCP = time.Since(tcpStart) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(_ tls.ConnectionState, _ error) { metrics.TLS = time.Since(tlsStart) },
		WroteHeaders: func() {
			wroteHeaders = time.Now()
			metrics.ReqHeaders = wroteHeaders.Sub(gotConn)
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			wroteRequest = time.Now()
			metrics.ReqBody = wroteRequest.Sub(wroteHeaders)
		},
		GotFirstResponseByte: func() {
			firstByte = time.Now()
			metrics.TTFB = firstByte.Sub(wroteRequest)
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	reqStart := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	metrics.Download = time.Since(firstByte)
	metrics.Total = time.Since(reqStart)

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    metrics,
	}, nil
}

// Upload POSTs an audio form to the client's API URL with exactly one
// retry on transient failure: a transport-level error, or an HTTP 5xx.
// Anything else, including every 4xx, is final on the first attempt.
// The retry waits retryBackoff and reuses the same body.
//
// Error classification: deadline → FailureTimeout; transport failure
// both times → FailureNetwork; 5xx both times → FailureService. A
// cancelled context returns ctx.Err unwrapped so shutdown is
// distinguishable from failure. Non-5xx status codes are returned to
// the caller, not classified here.
func (c *TracedClient) Upload(ctx context.Context, auth, contentType string, body []byte) (*TracedResponse, error) {
	var (
		lastErr error
		last5xx *TracedResponse
		retried bool
	)

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			retried = true
			timer := time.NewTimer(retryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctxFailure(ctx)
			case <-timer.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", auth)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctxFailure(ctx)
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, bytes.TrimSpace(resp.Body))
			last5xx = resp
			continue
		}
		resp.Metrics.Retried = retried
		return resp, nil
	}

	if last5xx != nil {
		return nil, &Failure{Kind: FailureService, Err: lastErr}
	}
	return nil, &Failure{Kind: FailureNetwork, Err: lastErr}
}

// ctxFailure maps a finished context to the taxonomy: a deadline is a
// Timeout failure, a cancellation propagates as-is.
func ctxFailure(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimeout, Err: ctx.Err()}
	}
	return ctx.Err()
}

// Warm opens the TLS connection to the API host ahead of the first
// upload so the real request rides a reused connection.
func (c *TracedClient) Warm() time.Duration {
	var tlsStart time.Time
	var tlsDuration time.Duration

	trace := &httptrace.ClientTrace{
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(_ tls.ConnectionState, _ error) { tlsDuration = time.Since(tlsStart) },
	}

	req, err := http.NewRequest("HEAD", c.apiURL, nil)
	if err != nil {
		return 0
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return tlsDuration
}
