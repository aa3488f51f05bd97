package store

import (
	"context"
	"fmt"

	"github.com/ashureev/pidtune/internal/domain"
)

// LoadCredentials returns the advisory key and model stored for a user.
// Values missing for the user are taken from fallback, and the model falls
// back to domain.DefaultModel last. Stored values are opaque and never
// validated.
func LoadCredentials(ctx context.Context, repo Repository, userID string, fallback domain.Credentials) (domain.Credentials, error) {
	creds := fallback

	key, ok, err := repo.GetSetting(ctx, userID, domain.SettingAPIKey)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("load api key: %w", err)
	}
	if ok && key != "" {
		creds.APIKey = key
	}

	model, ok, err := repo.GetSetting(ctx, userID, domain.SettingModel)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("load model: %w", err)
	}
	if ok && model != "" {
		creds.Model = model
	}
	if creds.Model == "" {
		creds.Model = domain.DefaultModel
	}
	return creds, nil
}
