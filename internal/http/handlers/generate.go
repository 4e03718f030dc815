package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/middleware"
)

var allowedAspectRatios = map[string]struct{}{
	"1:1":  {},
	"16:9": {},
	"9:16": {},
	"4:3":  {},
	"3:4":  {},
}

type generateRequest struct {
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Instagram   string `json:"instagram"`
	WhatsApp    string `json:"whatsapp"`
	OfferText   string `json:"offer_text"`
	Notes       string `json:"notes"`
	Style       string `json:"style"`
	Language    string `json:"language"`
	AspectRatio string `json:"aspect_ratio"`
}

type generateResponse struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	RemainingQuota int    `json:"remaining_quota"`
	Unlimited      bool   `json:"unlimited,omitempty"`
}

// ImagesGenerate enqueues one generation job. Quota is checked before the job
// row exists, so denied requests leave no trace in the queue.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.CompanyName) == "" || strings.TrimSpace(req.OfferText) == "" {
		a.error(w, http.StatusBadRequest, "invalid_profile", "company_name and offer_text are required")
		return
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}
	if _, ok := allowedAspectRatios[req.AspectRatio]; !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported aspect ratio")
		return
	}
	if req.Language == "" {
		req.Language = middleware.LocaleFromContext(r.Context())
	}

	plan, err := a.Users.GetPlan(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to resolve plan")
		return
	}
	status, err := a.Quota.Check(r.Context(), userID, plan)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to check quota")
		return
	}
	if !status.Allowed {
		a.error(w, http.StatusForbidden, "quota_exceeded", "monthly generation quota exceeded")
		return
	}

	job := &domain.Job{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: domain.JobStatusPending,
		Profile: domain.BusinessProfile{
			CompanyName: strings.TrimSpace(req.CompanyName),
			Phone:       strings.TrimSpace(req.Phone),
			Address:     strings.TrimSpace(req.Address),
			Instagram:   strings.TrimSpace(req.Instagram),
			WhatsApp:    strings.TrimSpace(req.WhatsApp),
			OfferText:   strings.TrimSpace(req.OfferText),
			Notes:       strings.TrimSpace(req.Notes),
			Style:       strings.TrimSpace(req.Style),
			Language:    req.Language,
		},
		AspectRatio: req.AspectRatio,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: enqueue job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}

	remaining := status.MaxPerCycle - status.CurrentUsage
	if status.Unlimited {
		remaining = 0
	}
	a.json(w, http.StatusAccepted, generateResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		RemainingQuota: remaining,
		Unlimited:      status.Unlimited,
	})
}
