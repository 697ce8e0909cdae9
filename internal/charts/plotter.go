// Package charts renders the two static trend images that accompany the
// report. It consumes only the analytic table and nothing from the
// orchestration core; a chart failure never fails a run.
package charts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"
)

const (
	DailyChartFile   = "daily_cases.png"
	MonthlyChartFile = "monthly_cases.png"
)

// Plotter renders case-count trends anchored to the reference date.
type Plotter struct {
	db       *sqlx.DB
	imageDir string
	logger   *zap.Logger
}

// NewPlotter builds a plotter writing PNGs into imageDir.
func NewPlotter(db *sqlx.DB, imageDir string, logger *zap.Logger) *Plotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plotter{db: db, imageDir: imageDir, logger: logger}
}

// Render produces both trend images: daily counts over the 30 days ending
// at referenceDate and monthly counts over the 12 months ending there.
func (p *Plotter) Render(ctx context.Context, referenceDate string) error {
	if err := os.MkdirAll(p.imageDir, 0o755); err != nil {
		return err
	}
	ref, err := time.Parse("2006-01-02", referenceDate)
	if err != nil {
		return fmt.Errorf("invalid reference date %q: %w", referenceDate, err)
	}
	if err := p.renderDaily(ctx, ref); err != nil {
		return fmt.Errorf("daily chart: %w", err)
	}
	if err := p.renderMonthly(ctx, ref); err != nil {
		return fmt.Errorf("monthly chart: %w", err)
	}
	return nil
}

type bucket struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func (p *Plotter) renderDaily(ctx context.Context, ref time.Time) error {
	start := ref.AddDate(0, 0, -29).Format("2006-01-02")
	end := ref.Format("2006-01-02")

	var rows []bucket
	err := p.db.SelectContext(ctx, &rows,
		`SELECT onset_date AS key, COUNT(*) AS count
		 FROM srag_cases
		 WHERE onset_date BETWEEN ? AND ?
		 GROUP BY onset_date ORDER BY onset_date`, start, end)
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.Count
	}

	if len(rows) == 0 {
		p.logger.Warn("No daily data in window, skipping daily chart")
		return nil
	}

	// one point per calendar day, zero-filled
	var xs []time.Time
	var ys []float64
	maxY := 0.0
	for d := ref.AddDate(0, 0, -29); !d.After(ref); d = d.AddDate(0, 0, 1) {
		y := float64(counts[d.Format("2006-01-02")])
		xs = append(xs, d)
		ys = append(ys, y)
		if y > maxY {
			maxY = y
		}
	}

	graph := chart.Chart{
		Title: fmt.Sprintf("SRAG cases per day (30 days ending %s)", end),
		XAxis: chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		// explicit range: a flat series would otherwise have a zero delta,
		// which the renderer rejects
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: maxY + 1}},
		Series: []chart.Series{
			chart.TimeSeries{Name: "cases", XValues: xs, YValues: ys},
		},
	}
	return p.write(DailyChartFile, graph.Render)
}

func (p *Plotter) renderMonthly(ctx context.Context, ref time.Time) error {
	start := ref.AddDate(0, -11, 0).Format("2006-01") + "-01"
	end := ref.Format("2006-01-02")

	var rows []bucket
	err := p.db.SelectContext(ctx, &rows,
		`SELECT substr(onset_date, 1, 7) AS key, COUNT(*) AS count
		 FROM srag_cases
		 WHERE onset_date BETWEEN ? AND ?
		 GROUP BY substr(onset_date, 1, 7) ORDER BY key`, start, end)
	if err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(rows))
	maxY := 0.0
	for _, r := range rows {
		bars = append(bars, chart.Value{Label: r.Key, Value: float64(r.Count)})
		if float64(r.Count) > maxY {
			maxY = float64(r.Count)
		}
	}
	if len(bars) == 0 {
		p.logger.Warn("No monthly data in window, skipping monthly chart")
		return nil
	}

	graph := chart.BarChart{
		Title:    fmt.Sprintf("SRAG cases per month (12 months ending %s)", end),
		BarWidth: 40,
		// explicit range: uniform bucket counts would otherwise have a zero
		// delta, which the renderer rejects
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: maxY + 1}},
		Bars:  bars,
	}
	return p.write(MonthlyChartFile, graph.Render)
}

func (p *Plotter) write(name string, render func(chart.RendererProvider, io.Writer) error) error {
	dest := filepath.Join(p.imageDir, name)
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := render(chart.PNG, f); err != nil {
		return err
	}
	p.logger.Info("Chart rendered", zap.String("file", dest))
	return nil
}
