package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	pb "github.com/ppiankov/askiguard/api/askiguard/v1"
	"github.com/ppiankov/askiguard/internal/approval"
	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/guard"
)

// Handlers serves the /v1 API.
type Handlers struct {
	svc *guard.Service
}

// Health reports liveness and the active config hash.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"config_hash": h.svc.ConfigHash(),
	})
}

// ValidateOutput checks an assistant response. Blocked responses are still
// 200: the decision is in the body.
func (h *Handlers) ValidateOutput(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pb.OutputRequest](w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ValidateOutput(req.Text, req.Context))
}

// ValidateInput checks user input.
func (h *Handlers) ValidateInput(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pb.InputRequest](w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ValidateInput(req.Text))
}

// ValidateCommand runs the command pipeline.
func (h *Handlers) ValidateCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pb.CommandRequest](w, r)
	if !ok {
		return
	}
	if req.Quick {
		writeJSON(w, http.StatusOK, h.svc.QuickValidate(req.Command))
		return
	}

	opts := command.Options{DryRun: req.DryRun}
	if req.Now != "" {
		now, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			writeError(w, http.StatusBadRequest, "now must be RFC3339")
			return
		}
		opts.Now = now
	}
	writeJSON(w, http.StatusOK, h.svc.ValidateCommand(req.Command, req.UserRequest, opts))
}

// Learn adds or removes a learned pattern.
func (h *Handlers) Learn(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pb.LearnRequest](w, r)
	if !ok {
		return
	}
	source := req.Source
	if source == "" {
		source = "http"
	}
	changed, err := h.svc.Learn(req.Kind, req.Pattern, source, req.Remove)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pb.LearnResponse{Changed: changed})
}

// Stats returns counters and stored state sizes.
func (h *Handlers) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Summary())
}

// ExportRules returns the mutable rule state as a JSON document.
func (h *Handlers) ExportRules(w http.ResponseWriter, _ *http.Request) {
	data, err := h.svc.ExportRules()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImportRules replaces the mutable rule state with the request body.
func (h *Handlers) ImportRules(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, bodyLimit))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if err := h.svc.ImportRules(data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Summary())
}

// ResetRules restores the default rule state.
func (h *Handlers) ResetRules(w http.ResponseWriter, _ *http.Request) {
	h.svc.ResetRules()
	writeJSON(w, http.StatusOK, h.svc.Summary())
}

// ExecutionLog lists execution log entries, optionally the last ?limit=n.
func (h *Handlers) ExecutionLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	log := h.svc.ExecutionLog()
	if limit > 0 {
		writeJSON(w, http.StatusOK, pb.ExecutionLogResponse{Entries: log.Recent(limit)})
		return
	}
	writeJSON(w, http.StatusOK, pb.ExecutionLogResponse{Entries: log.Entries()})
}

// ClearExecutionLog empties the execution log.
func (h *Handlers) ClearExecutionLog(w http.ResponseWriter, _ *http.Request) {
	h.svc.ExecutionLog().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// ListApprovals lists approvals, filtered by ?status= (default pending).
func (h *Handlers) ListApprovals(w http.ResponseWriter, r *http.Request) {
	status := approval.Status(r.URL.Query().Get("status"))
	switch status {
	case "":
		status = approval.StatusPending
	case "all":
		status = ""
	}
	list, err := h.svc.Approvals().List(status)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if list == nil {
		list = []approval.Approval{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetApproval returns one approval record.
func (h *Handlers) GetApproval(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Approvals().Get(chi.URLParam(r, "id"))
	if err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type approveRequest struct {
	By       string `json:"by"`
	Duration string `json:"duration"`
}

// Approve resolves a pending approval as approved.
func (h *Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := readOptionalJSON[approveRequest](w, r)
	if !ok {
		return
	}

	var duration time.Duration
	if req.Duration != "" {
		var err error
		if duration, err = time.ParseDuration(req.Duration); err != nil {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
	}

	if err := h.svc.Approvals().Approve(id, req.By, duration); err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pb.ApproveResponse{CommandID: id, Status: string(approval.StatusApproved)})
}

// Deny resolves a pending approval as denied.
func (h *Handlers) Deny(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := readOptionalJSON[approveRequest](w, r)
	if !ok {
		return
	}

	if err := h.svc.Approvals().Deny(id, req.By); err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pb.DenyResponse{CommandID: id, Status: string(approval.StatusDenied)})
}

func writeApprovalError(w http.ResponseWriter, err error) {
	if errors.Is(err, approval.ErrNotFound) {
		writeError(w, http.StatusNotFound, "approval not found")
		return
	}
	writeError(w, http.StatusConflict, err.Error())
}
