// Package remote adapts the slow, unreliable prediction and annotation
// services into per-key calls with a classified failure taxonomy. Nothing
// here mutates shared state and no error escapes an adapter: every call
// resolves into a model.Outcome.
package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/epiworks/episeek/internal/model"

	"github.com/google/uuid"
)

// DefaultTimeout bounds one blocking remote call.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes bounds how much of a response body is read. The services
// answer with short TSV or JSON documents; anything bigger is broken.
const maxResponseBytes = 1 << 20

// client is the shared HTTP plumbing of all adapters. The *http.Client is
// injected by the caller and constructed once, so pooled connections and any
// transport configuration are shared explicitly rather than through hidden
// process-wide state.
type client struct {
	hc      *http.Client
	timeout time.Duration
}

func newClient(hc *http.Client, timeout time.Duration) client {
	if hc == nil {
		hc = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return client{hc: hc, timeout: timeout}
}

// do executes one request under the per-call timeout and returns the body or
// a classified failure. A non-nil *model.Outcome means the call failed.
func (c client) do(ctx context.Context, req *http.Request) ([]byte, *model.Outcome) {
	reqID := uuid.New().String()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := c.hc.Do(req)
	if err != nil {
		out := classifyTransport(err)
		slog.DebugContext(ctx, "remote call failed",
			"req_id", reqID, "url", req.URL.String(),
			"reason", string(out.Reason), "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &out
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		out := classifyTransport(err)
		return nil, &out
	}

	slog.DebugContext(ctx, "remote call",
		"req_id", reqID, "url", req.URL.String(),
		"status", resp.StatusCode, "bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		out := model.Failure(model.ReasonRejected, statusError(resp.StatusCode, body))
		return nil, &out
	default:
		out := model.Failure(model.ReasonTransport, statusError(resp.StatusCode, body))
		return nil, &out
	}
}

// ping probes an endpoint with a HEAD request. Any response, including an
// error status, proves the service is up; only transport failures count.
func (c client) ping(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func classifyTransport(err error) model.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Failure(model.ReasonTimeout, err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return model.Failure(model.ReasonTimeout, err)
	}
	return model.Failure(model.ReasonTransport, err)
}

type httpStatusError struct {
	status int
	detail string
}

func statusError(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return httpStatusError{status: status, detail: detail}
}

func (e httpStatusError) Error() string {
	if e.detail == "" {
		return http.StatusText(e.status)
	}
	return http.StatusText(e.status) + ": " + e.detail
}
