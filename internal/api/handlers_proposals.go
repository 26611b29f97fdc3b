package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/pipeline"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/proposal"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/templatestore"
)

func (s *Server) decodeProposal(w http.ResponseWriter, r *http.Request) (*proposal.Proposal, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var p proposal.Proposal
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", s.cfg.MaxBodyBytes), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, "invalid proposal json: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if err := p.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &p, true
}

// handleRender generates the proposal synchronously and returns the PDF.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodeProposal(w, r)
	if !ok {
		return
	}

	res, err := s.orchestrator.Generator().Generate(r.Context(), p)
	if err != nil {
		s.log.Error("render failed", "proposal_id", p.ID, "error", err)
		writeGenerateError(w, err)
		return
	}
	writePDF(w, res)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodeProposal(w, r)
	if !ok {
		return
	}

	job := pipeline.NewJob(uuid.NewString(), p)
	if err := s.orchestrator.Submit(job); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), status)
		return
	}

	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":      snap.ID,
		"proposal_id": snap.ProposalID,
		"status":      snap.Status,
		"poll_url":    fmt.Sprintf("/api/proposals/jobs/%s", snap.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	body := map[string]any{"job": snap}
	if snap.Status == pipeline.StatusCompleted {
		body["artifact_url"] = fmt.Sprintf("/api/proposals/jobs/%s/artifact", snap.ID)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleJobArtifact(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	res := job.Result()
	if res == nil {
		jsonError(w, fmt.Sprintf("job is %s", job.Snapshot().Status), http.StatusConflict)
		return
	}
	writePDF(w, res)
}

func writePDF(w http.ResponseWriter, res *pipeline.Result) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Bytes)))
	w.Header().Set("X-Page-Count", strconv.Itoa(res.PageCount))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Bytes)
}

func writeGenerateError(w http.ResponseWriter, err error) {
	var quota *templatestore.QuotaError
	switch {
	case errors.As(err, &quota):
		if quota.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(quota.RetryAfter.Seconds()))))
		}
		jsonError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, proposal.ErrNoID), errors.Is(err, proposal.ErrNoOptions):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		jsonError(w, "render timed out", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled):
		jsonError(w, "request canceled", http.StatusServiceUnavailable)
	default:
		var transient *templatestore.TransientError
		if errors.As(err, &transient) {
			jsonError(w, err.Error(), http.StatusBadGateway)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
