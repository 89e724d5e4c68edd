package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	v.Set("JWT_SECRET", "s3cret")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "billing.db", cfg.Database.Path)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 4, cfg.Billing.BulkTaxConcurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Access.ViewAllGrants)
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("JWT_SECRET", "s3cret")
	v.Set("DB_DRIVER", "Postgres")
	v.Set("DB_HOST", "db.internal")
	v.Set("GRANTS_VIEW_ALL", "finance:invoices, director:* ,")
	v.Set("RATE_LIMIT_RPS", 5.5)

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, []string{"finance:invoices", "director:*"}, cfg.Access.ViewAllGrants)
	assert.Equal(t, 5.5, cfg.RateLimit.RPS)
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"missing secret", map[string]any{}},
		{"unknown driver", map[string]any{"JWT_SECRET": "x", "DB_DRIVER": "mysql"}},
		{"empty sqlite path", map[string]any{"JWT_SECRET": "x", "DB_PATH": ""}},
		{"postgres without host", map[string]any{"JWT_SECRET": "x", "DB_DRIVER": "postgres", "DB_HOST": ""}},
		{"zero concurrency", map[string]any{"JWT_SECRET": "x", "BULK_TAX_CONCURRENCY": 0}},
		{"negative burst", map[string]any{"JWT_SECRET": "x", "RATE_LIMIT_BURST": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := fromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b "))
}
