package etl

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testDict = &Dictionary{Columns: map[string]string{
	"DT_SIN_PRI": "onset_date",
	"SG_UF":      "state",
	"CS_SEXO":    "sex",
	"DT_NASC":    "birth_date",
	"UTI":        "icu",
	"DT_ENTUTI":  "icu_entry_date",
	"DT_SAIDUTI": "icu_exit_date",
	"EVOLUCAO":   "outcome",
	"VACINA_COV": "covid_vaccine",
	"DOSE_1_COV": "covid_dose1_date",
}}

const rawHeader = "DT_SIN_PRI;SG_UF;CS_SEXO;DT_NASC;UTI;DT_ENTUTI;DT_SAIDUTI;EVOLUCAO;VACINA_COV;DOSE_1_COV\n"

func writeRawCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestProcessorBuildsAnalyticTable(t *testing.T) {
	dataDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "srag.db")

	writeRawCSV(t, dataDir, "srag_2024.csv", rawHeader+
		// dd/mm/yyyy dates and float-rendered codes, as real exports have
		"15/06/2024;SP;F;10/03/1980;1.0;16/06/2024;;2;1;01/02/2021\n"+
		"2024-06-20;rj;M;1995-01-01;2;;;1;2;\n"+
		// dropped: no onset date
		";SP;F;1980-01-01;1;;;1;1;\n"+
		// dropped: birth after onset
		"2024-06-01;SP;F;2025-01-01;1;;;1;1;\n"+
		// dropped: unknown outcome code
		"2024-06-02;SP;F;1980-01-01;1;;;9;1;\n")

	err := NewProcessor(dataDir, dbPath, testDict, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	db, err := sqlx.Connect("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM srag_cases"))
	assert.Equal(t, 2, count)

	type row struct {
		OnsetDate    string         `db:"onset_date"`
		State        string         `db:"state"`
		Sex          string         `db:"sex"`
		Age          int            `db:"age"`
		ICU          string         `db:"icu"`
		Outcome      string         `db:"outcome"`
		CovidVaccine sql.NullString `db:"covid_vaccine"`
	}
	var first row
	require.NoError(t, db.Get(&first,
		`SELECT onset_date, state, sex, age, icu, outcome, covid_vaccine
		 FROM srag_cases WHERE onset_date = '2024-06-15'`))

	assert.Equal(t, "SP", first.State)
	assert.Equal(t, "female", first.Sex)
	assert.Equal(t, 44, first.Age)
	assert.Equal(t, "yes", first.ICU)
	assert.Equal(t, "death", first.Outcome)
	assert.Equal(t, "yes", first.CovidVaccine.String)

	var second row
	require.NoError(t, db.Get(&second,
		`SELECT onset_date, state, sex, age, icu, outcome, covid_vaccine
		 FROM srag_cases WHERE onset_date = '2024-06-20'`))
	assert.Equal(t, "RJ", second.State) // uppercased
	assert.Equal(t, "male", second.Sex)
	assert.Equal(t, "no", second.ICU)
	assert.Equal(t, "recovered", second.Outcome)
}

func TestProcessorStripsHeaderBOM(t *testing.T) {
	dataDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "srag.db")

	// some portal exports begin with a UTF-8 byte order mark
	writeRawCSV(t, dataDir, "bom.csv", "\uFEFF"+rawHeader+
		"2024-06-01;SP;F;1980-01-01;1;;;1;1;\n")

	err := NewProcessor(dataDir, dbPath, testDict, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	db, err := sqlx.Connect("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM srag_cases WHERE onset_date = '2024-06-01'"))
	assert.Equal(t, 1, count)
}

func TestProcessorReplacesExistingTable(t *testing.T) {
	dataDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "srag.db")

	writeRawCSV(t, dataDir, "a.csv", rawHeader+
		"2024-06-01;SP;F;1980-01-01;1;;;1;1;\n"+
		"2024-06-02;SP;F;1980-01-01;1;;;1;1;\n")
	require.NoError(t, NewProcessor(dataDir, dbPath, testDict, zap.NewNop()).Run(context.Background()))

	// second run with a single-row file must fully replace the table
	require.NoError(t, os.Remove(filepath.Join(dataDir, "a.csv")))
	writeRawCSV(t, dataDir, "b.csv", rawHeader+
		"2024-07-01;MG;M;1990-01-01;2;;;2;2;\n")
	require.NoError(t, NewProcessor(dataDir, dbPath, testDict, zap.NewNop()).Run(context.Background()))

	db, err := sqlx.Connect("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM srag_cases"))
	assert.Equal(t, 1, count)
}

func TestProcessorNoRawFiles(t *testing.T) {
	err := NewProcessor(t.TempDir(), filepath.Join(t.TempDir(), "srag.db"), testDict, zap.NewNop()).
		Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no raw CSV files")
}

func TestTransformRecordDropsCriticalGaps(t *testing.T) {
	idx := map[string]int{
		"onset_date": 0, "state": 1, "sex": 2, "birth_date": 3,
		"icu": 4, "outcome": 5,
	}
	cases := []struct {
		name string
		rec  []string
		ok   bool
	}{
		{"valid", []string{"2024-06-01", "SP", "F", "1980-01-01", "1", "1"}, true},
		{"bad onset", []string{"junk", "SP", "F", "1980-01-01", "1", "1"}, false},
		{"bad state", []string{"2024-06-01", "S", "F", "1980-01-01", "1", "1"}, false},
		{"missing birth", []string{"2024-06-01", "SP", "F", "", "1", "1"}, false},
		{"implausible age", []string{"2024-06-01", "SP", "F", "1800-01-01", "1", "1"}, false},
		{"unknown icu code", []string{"2024-06-01", "SP", "F", "1980-01-01", "9", "1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := transformRecord(tc.rec, idx)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2024-06-15", "15/06/2024", "2024/06/15"} {
		got, ok := parseDate(raw)
		require.True(t, ok, raw)
		assert.Equal(t, "2024-06-15", got)
	}
	_, ok := parseDate("06-15-2024")
	assert.False(t, ok)
	_, ok = parseDate("")
	assert.False(t, ok)
}

func TestAgeAt(t *testing.T) {
	age, ok := ageAt("2024-06-15", "1980-03-10")
	require.True(t, ok)
	assert.Equal(t, 44, age)

	_, ok = ageAt("2024-06-15", "2025-01-01")
	assert.False(t, ok)
	_, ok = ageAt("2024-06-15", "1850-01-01")
	assert.False(t, ok)
}

func TestMapCode(t *testing.T) {
	m := map[string]string{"1": "yes", "2": "no"}
	assert.Equal(t, "yes", mapCode("1", m))
	assert.Equal(t, "yes", mapCode("1.0", m))
	assert.Equal(t, "", mapCode("9", m))
	assert.Equal(t, "", mapCode("", m))
}
