package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

type jobStatusResponse struct {
	JobID          string            `json:"job_id"`
	Status         string            `json:"status"`
	AttemptsUsed   int               `json:"attempts_used"`
	ResultKey      string            `json:"result_key,omitempty"`
	ResultAccepted bool              `json:"result_accepted"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Attempts       []attemptResponse `json:"attempts,omitempty"`
}

type attemptResponse struct {
	Index    int     `json:"index"`
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Outcome  string  `json:"outcome"`
	Score    float64 `json:"score,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (a *App) loadJobForUser(r *http.Request) (*domain.Job, bool) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		return nil, false
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil || job.UserID != a.currentUserID(r) {
		return nil, false
	}
	return job, true
}

// JobStatus reports the current state of one job, including its attempt log.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	if a.currentUserID(r) == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, ok := a.loadJobForUser(r)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	resp := jobStatusResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		AttemptsUsed:   job.AttemptsUsed,
		ResultKey:      job.ResultKey,
		ResultAccepted: job.ResultAccepted,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
	if attempts, err := a.Attempts.ListByJobID(r.Context(), job.ID); err == nil {
		for _, att := range attempts {
			resp.Attempts = append(resp.Attempts, attemptResponse{
				Index:    att.AttemptIndex,
				Provider: att.ProviderID,
				Model:    att.ModelName,
				Outcome:  string(att.Outcome),
				Score:    att.QualityScore,
				Error:    att.ErrorMessage,
			})
		}
	}
	a.json(w, http.StatusOK, resp)
}

// JobArtifact streams the stored image of a completed job.
func (a *App) JobArtifact(w http.ResponseWriter, r *http.Request) {
	if a.currentUserID(r) == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, ok := a.loadJobForUser(r)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if job.Status != domain.JobStatusCompleted || job.ResultKey == "" {
		a.error(w, http.StatusConflict, "not_ready", "job has no artifact")
		return
	}

	data, err := a.Store.Read(r.Context(), job.ResultKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			a.error(w, http.StatusNotFound, "not_found", "artifact missing")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("handlers: read artifact")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load artifact")
		return
	}
	w.Header().Set("Content-Type", contentTypeForKey(job.ResultKey))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
