package github

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/httpx"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// retryTransport retries GET requests on timeouts and retryable statuses. Writes are sent once;
// creates are not idempotent.
type retryTransport struct {
	log        *logger.Logger
	base       http.RoundTripper
	maxRetries int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || t.maxRetries == 0 {
		return t.base.RoundTrip(req)
	}
	ctx := req.Context()
	backoff := 1 * time.Second
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		retryable := httpx.IsRetryableError(err)
		if err == nil {
			retryable = httpx.IsRetryableHTTPStatus(resp.StatusCode)
		}
		if !retryable || attempt == t.maxRetries {
			return resp, err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		reason := ""
		if err != nil {
			reason = err.Error()
		} else {
			reason = fmt.Sprintf("http %d", resp.StatusCode)
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
		t.log.Warn("GitHub request retrying",
			"path", req.URL.Path,
			"attempt", attempt+1,
			"max_retries", t.maxRetries,
			"sleep", sleepFor.String(),
			"error", reason,
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}
