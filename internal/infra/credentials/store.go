// Package credentials stores provider API keys in the database so they can be
// rotated without redeploying. Environment variables take precedence; the
// store is the fallback consulted at boot.
package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/infra"
)

const (
	ProviderGemini    = "gemini"
	ProviderDashScope = "dashscope"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Token returns the stored API key for the provider, or "" when none is set.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	query := `SELECT token FROM integration_tokens WHERE provider = $1;`
	var token string
	if err := s.pool.QueryRow(ctx, query, provider).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken upserts the API key for the provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("credentials: api key is required")
	}
	query := `
INSERT INTO integration_tokens (provider, token)
VALUES ($1, $2)
ON CONFLICT (provider) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW();
`
	_, err := s.pool.Exec(ctx, query, provider, token)
	return err
}

// Resolve prefers the environment value and falls back to the stored token.
func (s *Store) Resolve(ctx context.Context, provider, envValue string) (string, error) {
	if strings.TrimSpace(envValue) != "" {
		return strings.TrimSpace(envValue), nil
	}
	return s.Token(ctx, provider)
}
