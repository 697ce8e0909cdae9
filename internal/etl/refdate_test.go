package etl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeDict(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(`
columns:
  DT_SIN_PRI: onset_date
  SG_UF: state
  CS_SEXO: sex
  DT_NASC: birth_date
  UTI: icu
  DT_ENTUTI: icu_entry_date
  DT_SAIDUTI: icu_exit_date
  EVOLUCAO: outcome
  VACINA_COV: covid_vaccine
  DOSE_1_COV: covid_dose1_date
`), 0o644))
}

func removeRawFiles(dataDir string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

func TestLatestOnsetDate(t *testing.T) {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(createTableStmt)
	require.NoError(t, err)
	for _, d := range []string{"2024-06-01", "2024-06-30", "2024-06-15"} {
		_, err = db.Exec(`INSERT INTO srag_cases (onset_date, state, age, icu, outcome)
			VALUES (?, 'SP', 40, 'no', 'recovered')`, d)
		require.NoError(t, err)
	}

	ref, err := LatestOnsetDate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-30", ref)
}

func TestLatestOnsetDateEmptyTableFallsBack(t *testing.T) {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(createTableStmt)
	require.NoError(t, err)

	ref, err := LatestOnsetDate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, fallbackReferenceDate, ref)
}

func TestEnsureSkipsWhenDatabaseExists(t *testing.T) {
	dataDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "srag.db")

	writeRawCSV(t, dataDir, "a.csv", rawHeader+"2024-06-01;SP;F;1980-01-01;1;;;1;1;\n")

	dictPath := filepath.Join(t.TempDir(), "dict.yaml")
	writeDict(t, dictPath)

	require.NoError(t, Ensure(context.Background(), dataDir, dbPath, dictPath, false, zap.NewNop()))

	// with the database in place a second run must not touch the raw files,
	// so deleting them is safe
	require.NoError(t, removeRawFiles(dataDir))
	require.NoError(t, Ensure(context.Background(), dataDir, dbPath, dictPath, false, zap.NewNop()))
}

func TestEnsureForceRebuild(t *testing.T) {
	dataDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "srag.db")
	dictPath := filepath.Join(t.TempDir(), "dict.yaml")
	writeDict(t, dictPath)

	writeRawCSV(t, dataDir, "a.csv", rawHeader+"2024-06-01;SP;F;1980-01-01;1;;;1;1;\n")
	require.NoError(t, Ensure(context.Background(), dataDir, dbPath, dictPath, false, zap.NewNop()))

	writeRawCSV(t, dataDir, "a.csv", rawHeader+
		"2024-06-01;SP;F;1980-01-01;1;;;1;1;\n"+
		"2024-06-02;SP;F;1980-01-01;1;;;1;1;\n")
	require.NoError(t, Ensure(context.Background(), dataDir, dbPath, dictPath, true, zap.NewNop()))

	db, err := sqlx.Connect("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM srag_cases"))
	assert.Equal(t, 2, count)
}
