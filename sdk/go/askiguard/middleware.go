package askiguard

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxCommandBody caps the request body the middleware buffers.
const maxCommandBody = 1 << 20

// ApprovalHeader is set on forwarded requests whose command needs approval.
const ApprovalHeader = "X-Askiguard-Approval"

// commandSubmission is the request body Middleware expects: a command with
// an optional originating user request.
type commandSubmission struct {
	Command
	UserRequest string `json:"user_request,omitempty"`
}

// Middleware returns an http.Handler that validates the command in each
// request body before passing to the next handler. Blocked commands
// receive a 422 with a JSON body; malformed bodies receive a 400. The body
// is restored for next.
func (c *Client) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
		if err != nil {
			status := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(w, status, map[string]any{"error": "cannot read request body"})
			return
		}

		var sub commandSubmission
		if err := json.Unmarshal(body, &sub); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid command JSON"})
			return
		}

		res := c.ValidateCommand(sub.Command, sub.UserRequest)
		if e := blockedError(sub.Command, res); e != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"blocked": true,
				"level":   e.Level,
				"code":    e.Code,
				"message": e.Message,
				"errors":  res.Errors,
			})
			return
		}

		if res.ApprovalRequired {
			r.Header.Set(ApprovalHeader, "required")
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
