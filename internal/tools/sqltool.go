package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/vigilab/sragwatch/internal/agent"
	"github.com/vigilab/sragwatch/internal/tracing"
)

// AnalyticTable is the single table the query tool operates on.
const AnalyticTable = "srag_cases"

const sqlToolName = "query_srag_database"

const sqlToolDescription = "Query the SRAG surveillance database for exact metrics, counts and statistics. " +
	"Use it for any quantitative question (case counts, mortality, ICU admissions, vaccination)."

// tableSchemaDoc describes the analytic table to the SQL-writing model.
const tableSchemaDoc = `Table srag_cases (SQLite), one row per reported SRAG case:
  onset_date        TEXT  -- symptom onset date, ISO YYYY-MM-DD
  state             TEXT  -- two-letter Brazilian state code
  sex               TEXT  -- 'male' | 'female' | 'unknown'
  age               INTEGER
  icu               TEXT  -- ICU admission: 'yes' | 'no'
  icu_entry_date    TEXT  -- ISO YYYY-MM-DD, may be NULL
  icu_exit_date     TEXT  -- ISO YYYY-MM-DD, may be NULL
  outcome           TEXT  -- 'recovered' | 'death'
  covid_vaccine     TEXT  -- 'yes' | 'no'
  covid_dose1_date  TEXT  -- ISO YYYY-MM-DD, may be NULL`

const maxAnswerRows = 50

// readOnlyViolation matches statements that mutate data or schema. Checked
// before execution; a match is surfaced as the tool's answer text.
var readOnlyViolation = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|REPLACE|TRUNCATE|ATTACH|DETACH|PRAGMA|VACUUM|REINDEX)\b`)

// SQLTool answers natural-language quantitative questions by generating
// read-only SQL against the analytic table, anchored to the run's reference
// date as the only valid notion of "now".
type SQLTool struct {
	db            *sqlx.DB
	model         agent.ChatModel
	referenceDate string
	attempts      int
	logger        *zap.Logger
}

// OpenReadOnly opens the analytic sqlite database in read-only mode.
func OpenReadOnly(path string) (*sqlx.DB, error) {
	return sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
}

// NewSQLTool builds the structured-query tool. It fails fast when the
// analytic table is missing or empty: that is a setup precondition, not a
// runtime recoverable error.
func NewSQLTool(db *sqlx.DB, model agent.ChatModel, referenceDate string, attempts int, logger *zap.Logger) (*SQLTool, error) {
	if attempts <= 0 {
		attempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var count int
	if err := db.Get(&count, fmt.Sprintf("SELECT COUNT(*) FROM %s", AnalyticTable)); err != nil {
		return nil, fmt.Errorf("analytic table %s is not available: %w", AnalyticTable, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("analytic table %s is empty", AnalyticTable)
	}
	return &SQLTool{
		db:            db,
		model:         model,
		referenceDate: referenceDate,
		attempts:      attempts,
		logger:        logger,
	}, nil
}

func (t *SQLTool) Name() string        { return sqlToolName }
func (t *SQLTool) Description() string { return sqlToolDescription }

func (t *SQLTool) Parameters() map[string]any {
	return queryParameters("The quantitative question to answer from the database, in natural language.")
}

// Invoke runs the bounded generate-validate-execute loop and phrases the
// final answer from the returned rows.
func (t *SQLTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	question, err := decodeQuery(args)
	if err != nil {
		return "", err
	}

	ctx, span := tracing.StartSpan(ctx, "sqltool.invoke")
	defer span.End()

	var lastErr error
	feedback := ""
	for attempt := 1; attempt <= t.attempts; attempt++ {
		query, err := t.generateSQL(ctx, question, feedback)
		if err != nil {
			return "", fmt.Errorf("generate SQL: %w", err)
		}
		if reason, ok := violatesReadOnly(query); ok {
			t.logger.Warn("Rejected non-read-only SQL", zap.String("reason", reason))
			return fmt.Sprintf("query rejected: %s. The database is read-only; only SELECT statements are permitted.", reason), nil
		}
		rows, err := t.execute(ctx, query)
		if err != nil {
			lastErr = err
			feedback = fmt.Sprintf("The previous SQL was:\n%s\nIt failed with: %v\nWrite a corrected query.", query, err)
			t.logger.Debug("SQL execution failed, retrying",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return t.phraseAnswer(ctx, question, query, rows)
	}
	return "", fmt.Errorf("query generation did not produce an executable statement after %d attempts: %w", t.attempts, lastErr)
}

// LastNDaysWindow resolves a relative "last n days" phrase against the
// reference date: an inclusive window of exactly n calendar days ending at
// ref. The wall clock is never consulted.
func LastNDaysWindow(ref string, n int) (start, end string, err error) {
	d, err := time.Parse("2006-01-02", ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid reference date %q: %w", ref, err)
	}
	return d.AddDate(0, 0, -(n - 1)).Format("2006-01-02"), ref, nil
}

func (t *SQLTool) generateSQL(ctx context.Context, question, feedback string) (string, error) {
	start30, end30, err := LastNDaysWindow(t.referenceDate, 30)
	if err != nil {
		return "", err
	}
	system := fmt.Sprintf(`You are a SQL expert for public-health (SRAG) surveillance data.

%s

SAFETY AND CONTEXT GUARDRAILS:
1. The reference date ("today") for all calculations is strictly %s.
   - NEVER use now(), date('now') or CURRENT_DATE: the database is static.
   - "last 30 days" means onset_date BETWEEN '%s' AND '%s' (inclusive).
   - Resolve any other relative window the same way, ending at %s.
2. READ-ONLY ACCESS: only SELECT statements. Mutation or schema statements are forbidden.
3. Reply with a single SQLite SELECT statement and nothing else.`,
		tableSchemaDoc, t.referenceDate, start30, end30, t.referenceDate)

	msgs := []agent.Message{
		{Role: agent.RoleSystem, Content: system},
		agent.HumanMessage(question),
	}
	if feedback != "" {
		msgs = append(msgs, agent.HumanMessage(feedback))
	}
	resp, err := t.model.Chat(ctx, msgs, nil)
	if err != nil {
		return "", err
	}
	return extractSQL(resp.Content), nil
}

func (t *SQLTool) execute(ctx context.Context, query string) (string, error) {
	rows, err := t.db.QueryxContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	b.WriteByte('\n')
	count := 0
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return "", err
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			switch x := v.(type) {
			case []byte:
				parts[i] = string(x)
			case nil:
				parts[i] = "NULL"
			default:
				parts[i] = fmt.Sprintf("%v", x)
			}
		}
		b.WriteString(strings.Join(parts, " | "))
		b.WriteByte('\n')
		count++
		if count >= maxAnswerRows {
			b.WriteString("... (truncated)\n")
			break
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// phraseAnswer turns the raw result set into the literal answer text the
// reasoning loop consumes: numbers plus a short explanation, never raw rows.
func (t *SQLTool) phraseAnswer(ctx context.Context, question, query, rows string) (string, error) {
	system := fmt.Sprintf(`You summarize SQL results for a health-surveillance analyst.
The reference date ("today") is %s. Answer the question using only the result rows below.
State the exact numbers; add at most one short sentence of explanation.`, t.referenceDate)
	user := fmt.Sprintf("Question: %s\n\nExecuted SQL:\n%s\n\nResult rows:\n%s", question, query, rows)

	resp, err := t.model.Chat(ctx, []agent.Message{
		{Role: agent.RoleSystem, Content: system},
		agent.HumanMessage(user),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("phrase answer: %w", err)
	}
	return resp.Content, nil
}

// violatesReadOnly reports whether the statement is anything other than a
// single read-only SELECT.
func violatesReadOnly(query string) (string, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "empty statement", true
	}
	upper := strings.ToUpper(q)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "statement is not a SELECT", true
	}
	if m := readOnlyViolation.FindString(q); m != "" {
		return fmt.Sprintf("statement contains forbidden keyword %s", strings.ToUpper(m)), true
	}
	// reject statement batches
	if trimmed := strings.TrimRight(q, "; \n\t"); strings.Contains(trimmed, ";") {
		return "multiple statements are not allowed", true
	}
	return "", false
}

// extractSQL strips markdown fences the model may wrap the statement in.
func extractSQL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
