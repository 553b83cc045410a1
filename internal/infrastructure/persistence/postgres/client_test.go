package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"z-novel-storygen/internal/config"
)

func TestDSN(t *testing.T) {
	got := dsn(&config.PostgresConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "storygen",
		Password: "secret",
		Database: "storygen",
		SSLMode:  "disable",
	})
	assert.Equal(t, "host=db.internal port=5432 user=storygen password=secret dbname=storygen sslmode=disable", got)
}
