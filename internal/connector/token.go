package connector

import (
	"context"
	"os"
	"strings"

	"github.com/ppiankov/onesource/internal/model"
)

// TokenSource supplies a bearer credential for a provider and user.
// Acquisition, refresh, and encrypted storage live behind this boundary;
// an empty token means the adapter contributes nothing for the round.
type TokenSource interface {
	Token(ctx context.Context, source model.Source, userID string) (string, error)
}

// EnvTokenSource reads tokens from SLACK_TOKEN, DRIVE_TOKEN, GITHUB_TOKEN.
type EnvTokenSource struct{}

// Token returns the credential for the provider, or "" when unset.
func (EnvTokenSource) Token(_ context.Context, source model.Source, _ string) (string, error) {
	key := strings.ToUpper(string(source)) + "_TOKEN"
	return strings.TrimSpace(os.Getenv(key)), nil
}

// StaticTokenSource serves fixed tokens, used in tests and single-user setups.
type StaticTokenSource map[model.Source]string

// Token returns the configured credential for the provider.
func (s StaticTokenSource) Token(_ context.Context, source model.Source, _ string) (string, error) {
	return s[source], nil
}
