package outwriter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// WriteStats prints backend performance, cache counters and recommendations.
func (ow *OutWriter) WriteStats(report schema.StatsReport, cfg *contract.Config) error {
	fmtFloat := floatFormatter(cfg.Precision)

	var rows [][]string
	for _, kind := range schema.AllBackendKinds {
		perf := report.Performance[kind]
		rows = append(rows, []string{
			string(kind),
			strconv.Itoa(perf.Count),
			fmtFloat(perf.AvgRating),
			fmtFloat(perf.Median),
			fmtFloat(perf.StdDev),
		})
	}

	return render(cfg, view{
		json:   report,
		header: []string{"backend", "count", "avg_rating", "median", "std_dev"},
		rows:   rows,
		text: func(w io.Writer) error {
			last := "never"
			if !report.LastCalibration.IsZero() {
				last = report.LastCalibration.Format(contract.DateTimeFormat)
			}
			if _, err := fmt.Fprintf(w, "Routing threshold: %s (last calibrated: %s)\n", fmtFloat(report.Threshold), last); err != nil {
				return err
			}

			var perfRows [][]string
			for _, kind := range schema.AllBackendKinds {
				perf := report.Performance[kind]
				perfRows = append(perfRows, []string{
					backendLabel(kind, cfg),
					strconv.Itoa(perf.Count),
					ratingLabel(fmtFloat(perf.AvgRating), perf.AvgRating, cfg),
					fmtFloat(perf.Median),
					fmtFloat(perf.StdDev),
				})
			}
			if err := writeTable(w, []string{"Backend", "Ratings", "Avg", "Median", "StdDev"}, perfRows, alignRight); err != nil {
				return err
			}

			var caches []schema.CacheStats
			if report.Executor != nil {
				caches = append(caches, report.Executor.Caches...)
			}
			if report.Complexity != nil {
				caches = append(caches, *report.Complexity)
			}
			if len(caches) > 0 {
				if err := writeCacheTable(w, caches); err != nil {
					return err
				}
			}
			if report.Executor != nil {
				ex := report.Executor
				if _, err := fmt.Fprintf(w, "Queries executed: %d (avg %v, hit rate %s%%). Pool: %d/%d in use, %d waits, %d timeouts\n",
					ex.QueriesExecuted, ex.AvgQueryTime, fmtFloat(ex.HitRate*100),
					ex.Pool.InUse, ex.Pool.MaxConnections, ex.Pool.WaitCount, ex.Pool.TimeoutCount); err != nil {
					return err
				}
			}
			if len(report.Recommendations) > 0 {
				return writeRecommendationTable(w, report.Recommendations)
			}
			return nil
		},
	})
}

func writeCacheTable(w io.Writer, caches []schema.CacheStats) error {
	var rows [][]string
	for _, c := range caches {
		rows = append(rows, []string{
			c.Name,
			fmt.Sprintf("%d/%d", c.Entries, c.Capacity),
			c.TTL.String(),
			strconv.FormatInt(c.Hits, 10),
			strconv.FormatInt(c.Misses, 10),
			strconv.FormatInt(c.Evictions, 10),
			strconv.FormatInt(c.Expirations, 10),
		})
	}
	return writeTable(w, []string{"Cache", "Entries", "TTL", "Hits", "Misses", "Evicted", "Expired"}, rows, alignRight)
}

func writeRecommendationTable(w io.Writer, recs []schema.Recommendation) error {
	var rows [][]string
	for _, r := range recs {
		rows = append(rows, []string{r.Area, r.Setting, r.Current, r.Recommended, r.Reason})
	}
	return writeTable(w, []string{"Area", "Setting", "Current", "Recommended", "Reason"}, rows, alignLeft)
}

// WriteHistory prints the recorded selections, feedback and calibrations.
// A positive cfg.Limit keeps only the most recent entries of each kind.
func (ow *OutWriter) WriteHistory(log schema.MetricsLog, cfg *contract.Config) error {
	fmtFloat := floatFormatter(cfg.Precision)
	log = schema.MetricsLog{
		Selections:   lastN(log.Selections, cfg.Limit),
		Feedback:     lastN(log.Feedback, cfg.Limit),
		Calibrations: lastN(log.Calibrations, cfg.Limit),
	}

	var rows [][]string
	for _, s := range log.Selections {
		rows = append(rows, []string{"selection", s.Timestamp.Format(contract.DateTimeFormat), s.Query, string(s.Backend), fmtFloat(s.Complexity), "", "", "", ""})
	}
	for _, f := range log.Feedback {
		rows = append(rows, []string{"feedback", f.Timestamp.Format(contract.DateTimeFormat), f.Query, "", "", strconv.Itoa(f.Rating), f.Comment, "", ""})
	}
	for _, c := range log.Calibrations {
		rows = append(rows, []string{"calibration", c.Timestamp.Format(contract.DateTimeFormat), "", "", "", "", "", fmtFloat(c.OldThreshold), fmtFloat(c.NewThreshold)})
	}

	width := GetMaxTableTextWidth(cfg)
	return render(cfg, view{
		json:   log,
		header: []string{"kind", "timestamp", "query", "backend", "complexity", "rating", "comment", "old_threshold", "new_threshold"},
		rows:   rows,
		text: func(w io.Writer) error {
			var sel [][]string
			for _, s := range log.Selections {
				sel = append(sel, []string{s.Timestamp.Format(contract.DateTimeFormat), contract.TruncateText(s.Query, width), backendLabel(s.Backend, cfg), fmtFloat(s.Complexity)})
			}
			if err := writeTable(w, []string{"Time", "Query", "Backend", "Score"}, sel, alignLeft); err != nil {
				return err
			}
			var fb [][]string
			for _, f := range log.Feedback {
				fb = append(fb, []string{f.Timestamp.Format(contract.DateTimeFormat), contract.TruncateText(f.Query, width), strconv.Itoa(f.Rating), orDash(f.Comment)})
			}
			if err := writeTable(w, []string{"Time", "Query", "Rating", "Comment"}, fb, alignLeft); err != nil {
				return err
			}
			if len(log.Calibrations) > 0 {
				var cal [][]string
				for _, c := range log.Calibrations {
					cal = append(cal, []string{c.Timestamp.Format(contract.DateTimeFormat), fmtFloat(c.OldThreshold), fmtFloat(c.NewThreshold)})
				}
				if err := writeTable(w, []string{"Time", "Old", "New"}, cal, alignLeft); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintf(w, "%d selections, %d feedback, %d calibrations\n", len(log.Selections), len(log.Feedback), len(log.Calibrations))
			return err
		},
	})
}

// WriteStatus prints the status of the performance log store.
func (ow *OutWriter) WriteStatus(status schema.MonitorStatus, cfg *contract.Config) error {
	last := "never"
	if !status.LastSelection.IsZero() {
		last = status.LastSelection.Format(contract.DateTimeFormat)
	}
	row := []string{
		status.Backend,
		status.Location,
		strconv.FormatBool(status.Connected),
		strconv.Itoa(status.Selections),
		strconv.Itoa(status.Feedback),
		strconv.Itoa(status.Calibrations),
		last,
		strconv.Itoa(status.MigrationVersion),
	}
	return render(cfg, view{
		json:   status,
		header: []string{"backend", "location", "connected", "selections", "feedback", "calibrations", "last_selection", "migration_version"},
		rows:   [][]string{row},
		text: func(w io.Writer) error {
			pairs := [][]string{
				{"Backend", status.Backend},
				{"Location", orDash(status.Location)},
				{"Connected", row[2]},
				{"Selections", row[3]},
				{"Feedback", row[4]},
				{"Calibrations", row[5]},
				{"Last selection", last},
			}
			if status.MigrationVersion > 0 {
				pairs = append(pairs, []string{"Migration version", row[7]})
			}
			return writeKeyValues(w, pairs)
		},
	})
}

// lastN returns the last n items, or all of them when n <= 0.
func lastN[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
