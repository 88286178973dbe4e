package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: godesk-test
  env: production
server:
  port: 9090
database:
  driver: postgres
  host: db.local
  port: 5432
  name: godesk
  user: helpdesk
  password: secret
  ssl_mode: disable
assignment:
  condition_timeout: 5s
`), 0o600))

	require.NoError(t, LoadFromFile(path))
	c := Get()
	require.NotNil(t, c)

	assert.Equal(t, "godesk-test", c.App.Name)
	assert.True(t, c.App.IsProduction())
	assert.Equal(t, "0.0.0.0:9090", c.Server.Addr())
	assert.Equal(t, 5*time.Second, c.Assignment.ConditionTimeout)

	// Defaults fill what the file leaves out.
	assert.Equal(t, "*/5 * * * *", c.SLA.SweepCron)
	assert.Equal(t, 24*time.Hour, c.Auth.TokenTTL)

	assert.Equal(t,
		"host=db.local port=5432 user=helpdesk password=secret dbname=godesk sslmode=disable",
		c.Database.DSN())
}

func TestDSNByDriver(t *testing.T) {
	t.Run("mysql", func(t *testing.T) {
		c := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, Name: "godesk", User: "u", Password: "p"}
		assert.Equal(t, "u:p@tcp(db:3306)/godesk?parseTime=true", c.DSN())
	})

	t.Run("sqlite3", func(t *testing.T) {
		c := DatabaseConfig{Driver: "sqlite3", Path: "/tmp/godesk.db"}
		assert.Equal(t, "/tmp/godesk.db", c.DSN())
	})
}
