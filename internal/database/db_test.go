package database

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	t.Run("Defaults ssl mode", func(t *testing.T) {
		cfg := Config{Host: "db.local", Port: 6543, User: "postgres", Database: "vprok_prices"}
		assert.Equal(t, "postgres://postgres:@db.local:6543/vprok_prices?sslmode=disable", cfg.DSN())
	})

	t.Run("Escapes credentials", func(t *testing.T) {
		cfg := Config{
			Host:     "db.local",
			Port:     5432,
			User:     "parser",
			Password: "p@ss/w?rd#1",
			Database: "vprok_prices",
			SSLMode:  "require",
		}

		poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
		require.NoError(t, err)
		assert.Equal(t, "parser", poolConfig.ConnConfig.User)
		assert.Equal(t, "p@ss/w?rd#1", poolConfig.ConnConfig.Password)
		assert.Equal(t, "db.local", poolConfig.ConnConfig.Host)
		assert.Equal(t, uint16(5432), poolConfig.ConnConfig.Port)
		assert.Equal(t, "vprok_prices", poolConfig.ConnConfig.Database)
	})
}
