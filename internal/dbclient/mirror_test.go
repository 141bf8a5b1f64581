package dbclient_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airexport/internal/dbclient"
	"airexport/internal/domain"
	"airexport/internal/etl"
)

func openMirror(t *testing.T) (*dbclient.Mirror, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.db")
	conn, err := dbclient.NewConnector(&domain.MirrorConnection{Driver: domain.DatabaseDriverSQLite, DSN: path})
	require.NoError(t, err)
	require.NoError(t, conn.TestConnection(context.Background()))
	m := dbclient.NewMirror(conn, nil)
	t.Cleanup(func() { m.Close() })
	return m, path
}

func TestMirror_ReplacesTable(t *testing.T) {
	m, path := openMirror(t)
	ctx := context.Background()
	schema := &etl.Schema{Fields: []etl.Field{{Name: "Email"}, {Name: "Notes"}, {Name: `Odd "name"`}}}

	n, err := m.Write(ctx, "enrollments", schema, []etl.ExportRow{
		{"Email": "a@x.com", "Notes": "first"},
		{"Email": "b@x.com", `Odd "name"`: "q"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second write replaces the first entirely.
	n, err = m.Write(ctx, "enrollments", &etl.Schema{Fields: []etl.Field{{Name: "Email"}, {Name: "Notes"}}}, []etl.ExportRow{
		{"Email": "c@x.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT "Email", "Notes" FROM "enrollments"`)
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var email string
		var notes sql.NullString
		require.NoError(t, rows.Scan(&email, &notes))
		assert.False(t, notes.Valid, "absent field is stored as NULL")
		got = append(got, email)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"c@x.com"}, got)
}

func TestMirror_NoColumnsDropsTable(t *testing.T) {
	m, path := openMirror(t)
	ctx := context.Background()

	_, err := m.Write(ctx, "purchases", &etl.Schema{Fields: []etl.Field{{Name: "A"}}}, []etl.ExportRow{{"A": "1"}})
	require.NoError(t, err)

	n, err := m.Write(ctx, "purchases", &etl.Schema{}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='purchases'`).Scan(&count))
	assert.Zero(t, count)
}

func TestNewConnector_Rejects(t *testing.T) {
	_, err := dbclient.NewConnector(&domain.MirrorConnection{Driver: domain.DatabaseDriverSQLite})
	assert.ErrorContains(t, err, "dsn is empty")

	_, err = dbclient.NewConnector(&domain.MirrorConnection{Driver: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported driver")

	_, err = dbclient.NewConnector(&domain.MirrorConnection{Driver: domain.DatabaseDriverMongoDB, DSN: "localhost:27017"})
	assert.ErrorContains(t, err, "mongodb://")
}
