package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMockManager builds a manager whose pools are sqlmock connections, one
// per named database, all of the given type.
func newMockManager(t *testing.T, dbType config.DatabaseType, names ...string) (*Manager, map[string]sqlmock.Sqlmock) {
	t.Helper()

	m := NewManager(nil, discardLogger())
	mocks := make(map[string]sqlmock.Sqlmock, len(names))
	for _, name := range names {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		m.configs[name] = &config.DatabaseConfig{Name: name, Type: dbType}
		m.pools[name] = db
		mocks[name] = mock
	}
	return m, mocks
}

func TestQuery_ConvertsByteSlicesToStrings(t *testing.T) {
	m, mocks := newMockManager(t, config.DatabaseTypePostgreSQL, "crm")

	mocks["crm"].ExpectQuery("SELECT id, name FROM contacts").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(7), []byte("О'Брайен")))

	rows, err := m.Query(context.Background(), "crm", "SELECT id, name FROM contacts")
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0]["id"])
	assert.Equal(t, "О'Брайен", rows[0]["name"])
	require.NoError(t, mocks["crm"].ExpectationsWereMet())
}

func TestQuery_NilAndTimeValuesPassThrough(t *testing.T) {
	m, mocks := newMockManager(t, config.DatabaseTypePostgreSQL, "crm")

	when := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mocks["crm"].ExpectQuery("SELECT created_at, note FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "note"}).AddRow(when, nil))

	rows, err := m.Query(context.Background(), "crm", "SELECT created_at, note FROM events")
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, when, rows[0]["created_at"])
	assert.Nil(t, rows[0]["note"])
}

func TestQuery_UnknownDatabase(t *testing.T) {
	m, _ := newMockManager(t, config.DatabaseTypePostgreSQL, "crm")

	_, err := m.Query(context.Background(), "warehouse", "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDatabase)
}

func TestQuery_DriverErrorNamesDatabase(t *testing.T) {
	m, mocks := newMockManager(t, config.DatabaseTypePostgreSQL, "crm")

	mocks["crm"].ExpectQuery("SELECT").
		WillReturnError(errors.New(`relation "ghosts" does not exist`))

	_, err := m.Query(context.Background(), "crm", "SELECT * FROM ghosts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghosts")
	assert.Contains(t, err.Error(), "crm")
}

func TestQueryAll_PartialFailureLeavesSiblingsIntact(t *testing.T) {
	m, mocks := newMockManager(t, config.DatabaseTypePostgreSQL, "crm", "warehouse")

	mocks["crm"].ExpectQuery("SELECT name FROM cities").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("Atlantis").
			AddRow("Lemuria"))
	mocks["warehouse"].ExpectQuery("SELECT name FROM cities").
		WillReturnError(errors.New("connection refused"))

	results, errs := m.QueryAll(context.Background(), []string{"crm", "warehouse"}, "SELECT name FROM cities")

	require.Len(t, results, 1)
	assert.Len(t, results["crm"], 2)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs["warehouse"], "connection refused")
}

func TestFlatten_TagsRowsInSortedDatabaseOrder(t *testing.T) {
	all := map[string][]map[string]any{
		"warehouse": {{"sku": "W-1"}},
		"crm":       {{"id": 1}, {"id": 2}},
	}

	merged := Flatten(all)

	require.Len(t, merged, 3)
	assert.Equal(t, "crm", merged[0][state.SourceDatabaseKey])
	assert.Equal(t, 1, merged[0]["id"])
	assert.Equal(t, "crm", merged[1][state.SourceDatabaseKey])
	assert.Equal(t, "warehouse", merged[2][state.SourceDatabaseKey])
	assert.Equal(t, "W-1", merged[2]["sku"])

	// Input rows stay untouched.
	_, tagged := all["crm"][0][state.SourceDatabaseKey]
	assert.False(t, tagged)
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(nil))
	assert.Empty(t, Flatten(map[string][]map[string]any{}))
}

func TestNames_Sorted(t *testing.T) {
	m, _ := newMockManager(t, config.DatabaseTypePostgreSQL, "warehouse", "crm", "analytics")

	assert.Equal(t, []string{"analytics", "crm", "warehouse"}, m.Names())
	assert.Equal(t, 3, m.Len())
}

func TestHealth_ReportsPerDatabase(t *testing.T) {
	m, mocks := newMockManager(t, config.DatabaseTypePostgreSQL, "crm", "warehouse")

	mocks["crm"].ExpectPing()
	mocks["warehouse"].ExpectPing().WillReturnError(errors.New("connection reset"))

	report := m.Health(context.Background())

	require.Len(t, report, 2)
	assert.Equal(t, "healthy", report["crm"].Status)
	assert.Empty(t, report["crm"].Error)
	assert.Equal(t, "unhealthy", report["warehouse"].Status)
	assert.Contains(t, report["warehouse"].Error, "connection reset")
}

func TestClose_ClosesOpenPools(t *testing.T) {
	m, mocks := newMockManager(t, config.DatabaseTypePostgreSQL, "crm")
	mocks["crm"].ExpectClose()

	require.NoError(t, m.Close())
	require.NoError(t, mocks["crm"].ExpectationsWereMet())

	// The configuration survives a close, only the pools are gone.
	assert.Equal(t, []string{"crm"}, m.Names())
}
