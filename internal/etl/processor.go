package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// analyticColumns is the fixed schema of the srag_cases table, the only
// surface the orchestration core consumes from this layer.
var analyticColumns = []string{
	"onset_date",
	"state",
	"sex",
	"age",
	"icu",
	"icu_entry_date",
	"icu_exit_date",
	"outcome",
	"covid_vaccine",
	"covid_dose1_date",
}

const createTableStmt = `CREATE TABLE srag_cases (
	onset_date       TEXT NOT NULL,
	state            TEXT NOT NULL,
	sex              TEXT,
	age              INTEGER NOT NULL,
	icu              TEXT NOT NULL,
	icu_entry_date   TEXT,
	icu_exit_date    TEXT,
	outcome          TEXT NOT NULL,
	covid_vaccine    TEXT,
	covid_dose1_date TEXT
)`

// Processor normalizes raw SIVEP-Gripe CSV exports into the analytic
// sqlite table: column renaming via the data dictionary, categorical code
// mapping, age derivation, ISO date normalization, and the removal of rows
// missing fields critical for temporal or geographic analysis.
type Processor struct {
	dataDir string
	dbPath  string
	dict    *Dictionary
	logger  *zap.Logger
}

// NewProcessor builds a processor over the raw files in dataDir.
func NewProcessor(dataDir, dbPath string, dict *Dictionary, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{dataDir: dataDir, dbPath: dbPath, dict: dict, logger: logger}
}

type caseRow struct {
	OnsetDate      string
	State          string
	Sex            string
	Age            int
	ICU            string
	ICUEntryDate   string
	ICUExitDate    string
	Outcome        string
	CovidVaccine   string
	CovidDose1Date string
}

// Run reads every raw CSV, transforms the rows and replaces the analytic
// table in one transaction.
func (p *Processor) Run(ctx context.Context) error {
	files, err := filepath.Glob(filepath.Join(p.dataDir, "*.csv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no raw CSV files in %s", p.dataDir)
	}

	var all []caseRow
	for _, f := range files {
		rows, err := p.processFile(f)
		if err != nil {
			p.logger.Error("Failed to process raw file", zap.String("file", f), zap.Error(err))
			continue
		}
		all = append(all, rows...)
	}
	if len(all) == 0 {
		return fmt.Errorf("no usable rows in %d raw files", len(files))
	}

	if err := p.load(ctx, all); err != nil {
		return err
	}
	p.logger.Info("ETL load complete",
		zap.Int("rows", len(all)),
		zap.Int("columns", len(analyticColumns)),
		zap.String("db", p.dbPath),
	)
	return nil
}

func (p *Processor) processFile(path string) ([]caseRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';' // SIVEP-Gripe exports are semicolon-separated
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	// index of each analytic column in the raw record
	idx := make(map[string]int)
	for i, raw := range header {
		name := strings.TrimSpace(strings.Trim(raw, "\uFEFF\""))
		if target, ok := p.dict.Columns[name]; ok {
			idx[target] = i
		}
	}
	if _, ok := idx["onset_date"]; !ok {
		return nil, fmt.Errorf("raw file lacks the symptom onset column")
	}

	var out []caseRow
	dropped := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row, ok := transformRecord(rec, idx)
		if !ok {
			dropped++
			continue
		}
		out = append(out, row)
	}
	p.logger.Info("Processed raw file",
		zap.String("file", filepath.Base(path)),
		zap.Int("rows", len(out)),
		zap.Int("dropped", dropped),
	)
	return out, nil
}

// transformRecord applies the business rules to one raw record. It returns
// ok=false when a field critical for analysis is missing or unparseable.
func transformRecord(rec []string, idx map[string]int) (caseRow, bool) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	onset, ok := parseDate(get("onset_date"))
	if !ok {
		return caseRow{}, false
	}
	state := strings.ToUpper(get("state"))
	if len(state) != 2 {
		return caseRow{}, false
	}
	birth, ok := parseDate(get("birth_date"))
	if !ok {
		return caseRow{}, false
	}
	age, ok := ageAt(onset, birth)
	if !ok {
		return caseRow{}, false
	}
	outcome := mapCode(get("outcome"), map[string]string{"1": "recovered", "2": "death"})
	if outcome == "" {
		return caseRow{}, false
	}
	icu := mapCode(get("icu"), map[string]string{"1": "yes", "2": "no"})
	if icu == "" {
		return caseRow{}, false
	}

	entry, _ := parseDate(get("icu_entry_date"))
	exit, _ := parseDate(get("icu_exit_date"))
	dose1, _ := parseDate(get("covid_dose1_date"))

	return caseRow{
		OnsetDate:      onset,
		State:          state,
		Sex:            mapCode(get("sex"), map[string]string{"M": "male", "F": "female", "I": "unknown"}),
		Age:            age,
		ICU:            icu,
		ICUEntryDate:   entry,
		ICUExitDate:    exit,
		Outcome:        outcome,
		CovidVaccine:   mapCode(get("covid_vaccine"), map[string]string{"1": "yes", "2": "no"}),
		CovidDose1Date: dose1,
	}, true
}

// mapCode normalizes a raw categorical code, tolerating the "1.0" float
// renderings that appear in some dataset years.
func mapCode(raw string, m map[string]string) string {
	raw = strings.TrimSuffix(raw, ".0")
	return m[raw]
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006/01/02"}

// parseDate normalizes the mixed date formats in the raw data to ISO.
func parseDate(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return "", false
}

// ageAt derives the completed age in years at the onset date.
func ageAt(onsetISO, birthISO string) (int, bool) {
	onset, err1 := time.Parse("2006-01-02", onsetISO)
	birth, err2 := time.Parse("2006-01-02", birthISO)
	if err1 != nil || err2 != nil || birth.After(onset) {
		return 0, false
	}
	age := int(onset.Sub(birth).Hours() / 24 / 365.25)
	if age > 130 {
		return 0, false
	}
	return age, true
}

// load replaces the srag_cases table with the transformed rows.
func (p *Processor) load(ctx context.Context, rows []caseRow) error {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", p.dbPath)
	if err != nil {
		return fmt.Errorf("open analytic db: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS srag_cases"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, createTableStmt); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(
		"INSERT INTO srag_cases (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		strings.Join(analyticColumns, ", "),
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.OnsetDate, r.State, nullable(r.Sex), r.Age, r.ICU,
			nullable(r.ICUEntryDate), nullable(r.ICUExitDate),
			r.Outcome, nullable(r.CovidVaccine), nullable(r.CovidDose1Date),
		); err != nil {
			return fmt.Errorf("insert case row: %w", err)
		}
	}
	return tx.Commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
