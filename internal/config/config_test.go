package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"DB_PATH", "BACKUP_DIR", "BACKUP_KEEP", "BACKUP_PASSPHRASE", "TIMEZONE", "LOG_LEVEL", "METRICS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, "./data/billbook.db", cfg.DBPath)
	assert.Equal(t, "./data/backups", cfg.BackupDir)
	assert.Equal(t, 5, cfg.BackupKeep)
	assert.Empty(t, cfg.BackupPassphrase)
	assert.Equal(t, "Local", cfg.Timezone)
	assert.Empty(t, cfg.MetricsAddr)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("BACKUP_KEEP", "9")
	t.Setenv("TIMEZONE", "Asia/Kolkata")
	t.Setenv("METRICS_ADDR", ":9100")

	cfg := FromEnv()
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 9, cfg.BackupKeep)
	assert.Equal(t, ":9100", cfg.MetricsAddr)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestBadIntFallsBack(t *testing.T) {
	t.Setenv("BACKUP_KEEP", "lots")
	assert.Equal(t, 5, FromEnv().BackupKeep)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad keep",
			mutate:  func(c *Config) { c.BackupKeep = 0 },
			wantErr: []string{"BACKUP_KEEP"},
		},
		{
			name:    "bad zone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr: []string{"TIMEZONE"},
		},
		{
			name:    "bad metrics addr",
			mutate:  func(c *Config) { c.MetricsAddr = "9100" },
			wantErr: []string{"METRICS_ADDR"},
		},
		{
			name: "all problems reported together",
			mutate: func(c *Config) {
				c.DBPath = ""
				c.BackupDir = ""
				c.LogLevel = "loud"
			},
			wantErr: []string{"DB_PATH", "BACKUP_DIR", "LOG_LEVEL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DBPath:     "a.db",
				BackupDir:  "backups",
				BackupKeep: 5,
				Timezone:   "UTC",
				LogLevel:   "info",
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
