package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsportal/internal/db"
	"opsportal/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	before, err := migrate.Current(conn)
	require.NoError(t, err)
	assert.Equal(t, 0, before)

	require.NoError(t, migrate.Migrate(conn))
	require.NoError(t, migrate.Migrate(conn))

	latest, err := migrate.Latest()
	require.NoError(t, err)
	current, err := migrate.Current(conn)
	require.NoError(t, err)
	assert.Equal(t, latest, current)
}

func TestEventsAreAppendOnly(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))

	_, err = conn.Exec(`INSERT INTO events(type,payload_json,created_at) VALUES ('lead.created','{}','2024-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = conn.Exec(`UPDATE events SET type='tampered'`)
	assert.Error(t, err)
	_, err = conn.Exec(`DELETE FROM events`)
	assert.Error(t, err)
}

func TestSingleActiveDefinition(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))

	_, err = conn.Exec(`INSERT INTO process_definitions(id,key,version,is_active,json,created_at) VALUES ('d1','k',1,1,'{}','2024-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO process_definitions(id,key,version,is_active,json,created_at) VALUES ('d2','k',2,1,'{}','2024-01-01T00:00:00Z')`)
	assert.Error(t, err, "a second active definition must be rejected")
}
