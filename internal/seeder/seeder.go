package seeder

import (
	"context"
	"log/slog"

	"github.com/Newbigfonsz/llm-gateway/internal/auth"
)

const (
	TestAPIKey = "llm-test-api-key-0000000000000000"
	TestTeamID = "team-local-dev"
)

// SeedTestAPIKey creates a well-known key for local development.
func SeedTestAPIKey(ctx context.Context, store auth.Store, log *slog.Logger) {
	record := &auth.APIKeyRecord{
		KeyHash:      auth.HashKey(TestAPIKey),
		KeyPrefix:    TestAPIKey[:12],
		TeamID:       TestTeamID,
		TeamName:     "Local Dev",
		RateLimitRPM: 60,
		Active:       true,
	}

	if err := store.Create(ctx, record); err != nil {
		log.Info("seeder: API key may already exist, skipping", "error", err)
		return
	}
	log.Info("seeder: test API key created", "key", TestAPIKey, "team_id", TestTeamID)
}
