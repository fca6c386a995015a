package alert

import (
	"bytes"
	"fmt"
	"net/http"
	"time"
)

const (
	requestTimeout = 5 * time.Second
	maxAttempts    = 3
	userAgent      = "askiguard-alert"

	// EventHeader carries the event name so receivers can route without
	// parsing the body.
	EventHeader = "X-Askiguard-Event"
)

var httpClient = &http.Client{Timeout: requestTimeout}

// Send delivers one block or approval event to a webhook. A 4xx answer is
// final; transport errors and 5xx answers are retried with linear backoff.
func Send(cfg AlertConfig, event AlertEvent) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	req, err := newRequest(cfg, event.Event, body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		status, err := post(req)
		switch {
		case err != nil:
			lastErr = err
		case status >= 200 && status < 300:
			return nil
		case status >= 400 && status < 500:
			return fmt.Errorf("webhook rejected %s event: HTTP %d", event.Event, status)
		default:
			lastErr = fmt.Errorf("webhook server error: HTTP %d", status)
		}
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", maxAttempts, lastErr)
}

func newRequest(cfg AlertConfig, event string, body []byte) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(EventHeader, event)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// post sends a fresh copy of req so the body can be replayed on retry.
func post(req *http.Request) (int, error) {
	attempt := req.Clone(req.Context())
	body, err := req.GetBody()
	if err != nil {
		return 0, err
	}
	attempt.Body = body

	resp, err := httpClient.Do(attempt)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
