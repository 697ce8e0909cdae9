package etl

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// fallbackReferenceDate is used when the analytic table yields no dates, so
// a run can still be attempted against an empty or partial load.
const fallbackReferenceDate = "2024-01-01"

// LatestOnsetDate returns the most recent symptom onset date in the
// analytic table. It aligns the agent's clock with the reality of the data
// instead of the wall clock, so "last 30 days" windows stay meaningful when
// the dataset lags.
func LatestOnsetDate(ctx context.Context, db *sqlx.DB) (string, error) {
	var max sql.NullString
	err := db.GetContext(ctx, &max, "SELECT MAX(onset_date) FROM srag_cases")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if !max.Valid || max.String == "" {
		return fallbackReferenceDate, nil
	}
	return max.String, nil
}
