// Package handlers exposes the HTTP intake and status surface. Generation
// itself happens in the worker; these handlers only enqueue, report and serve
// finished artifacts.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
)

// QuotaChecker is the pre-flight side of the quota ledger.
type QuotaChecker interface {
	Check(ctx context.Context, userID string, plan domain.Plan) (domain.QuotaStatus, error)
}

// ArtifactReader loads stored artifact bytes by result key.
type ArtifactReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// App carries the handler dependencies.
type App struct {
	Jobs     domain.JobRepository
	Attempts domain.AttemptRepository
	Users    domain.UserRepository
	Quota    QuotaChecker
	Store    ArtifactReader
	Logger   infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
