package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, uint(8080), cfg.Port)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, DefaultVoteThreshold, cfg.ApprovalThreshold())
	assert.Equal(t, 30*time.Second, cfg.ShutdownDuration())
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
}

func TestLoadYAMLThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
port: 9000
voteApprovalThreshold: 5
corsOrigins:
  - https://salaries.example.com
jwtIssuer: identity-service
`)
	t.Setenv("PAYBOARD_VOTE_APPROVAL_THRESHOLD", "7")
	t.Setenv("DATABASE_URL", "postgres://host=db user=app dbname=payboard")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint(9000), cfg.Port)
	assert.Equal(t, 7, cfg.ApprovalThreshold())
	assert.Equal(t, []string{"https://salaries.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "identity-service", cfg.JWTIssuer)
	assert.Equal(t, "postgres://host=db user=app dbname=payboard", cfg.DatabaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad shutdown timeout", body: "shutdownTimeout: soon\n"},
		{name: "negative rate limit", body: "rateLimitPerMinute: -1\n"},
		{name: "port out of range", body: "port: 70000\n"},
		{name: "malformed yaml", body: "port: [\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	cfg := Default()
	ctx := WithContext(t.Context(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
	assert.Nil(t, FromContext(t.Context()))
}
