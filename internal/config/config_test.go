package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PIN", "")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.AdminPIN)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 480*time.Minute, cfg.AccessTokenTTL())
}

func TestLoadServerFixesNonPositiveTTLs(t *testing.T) {
	t.Setenv("STATS_TTL_SECONDS", "0")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.StatsTTL())
	assert.Equal(t, 480*time.Minute, cfg.AccessTokenTTL())
}

func TestLoadTerminal(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		args       []string
		wantURL    string
		wantPIN    string
		wantBranch string
	}{
		{
			name:    "defaults",
			wantURL: "http://127.0.0.1:8080",
		},
		{
			name:       "flags only",
			args:       []string{"-b", "http://pos.local:9000/", "-p", "739154", "-branch", "2"},
			wantURL:    "http://pos.local:9000",
			wantPIN:    "739154",
			wantBranch: "2",
		},
		{
			name:       "env overrides flags",
			env:        map[string]string{"BACKEND_URL": "http://env:8080", "POS_PIN": "480271"},
			args:       []string{"-b", "http://flag:8080", "-p", "739154", "-branch", "3"},
			wantURL:    "http://env:8080",
			wantPIN:    "480271",
			wantBranch: "3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BACKEND_URL", "")
			t.Setenv("POS_PIN", "")
			t.Setenv("POS_BRANCH", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadTerminal(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, cfg.BackendURL)
			assert.Equal(t, tt.wantPIN, cfg.PIN)
			assert.Equal(t, tt.wantBranch, cfg.BranchID)
			assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
		})
	}
}
