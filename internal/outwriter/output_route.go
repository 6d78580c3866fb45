package outwriter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// WriteRequest prints the outcome of the full request pipeline.
func (ow *OutWriter) WriteRequest(req schema.OptimizedRequest, cfg *contract.Config, duration time.Duration) error {
	fmtFloat := floatFormatter(cfg.Precision)
	width := GetMaxTableTextWidth(cfg)

	return render(cfg, view{
		json: req,
		header: []string{
			"id", "query", "refined_query", "backend", "score", "threshold", "domain",
			"temperature", "top_p", "max_tokens", "history", "tokens_saved",
		},
		rows: [][]string{{
			req.ID,
			req.Query,
			req.RefinedQuery,
			string(req.Choice.Backend),
			fmtFloat(req.Choice.Score.Overall),
			fmtFloat(req.Choice.Threshold),
			string(req.Choice.Score.Domain),
			fmtFloat(req.Params.Temperature),
			fmtFloat(req.Params.TopP),
			strconv.Itoa(req.Params.MaxTokens),
			strconv.Itoa(len(req.History)),
			strconv.Itoa(req.TokensSaved),
		}},
		text: func(w io.Writer) error {
			pairs := [][]string{
				{"Request", req.ID},
				{"Query", contract.TruncateText(req.Query, width)},
				{"Refined", contract.TruncateText(req.RefinedQuery, width)},
				{"Backend", backendLabel(req.Choice.Backend, cfg)},
				{"Score", fmtFloat(req.Choice.Score.Overall)},
				{"Threshold", fmtFloat(req.Choice.Threshold)},
				{"Domain", orDash(string(req.Choice.Score.Domain))},
				{"Temperature", fmtFloat(req.Params.Temperature)},
				{"Top P", fmtFloat(req.Params.TopP)},
				{"Max tokens", strconv.Itoa(req.Params.MaxTokens)},
				{"History kept", strconv.Itoa(len(req.History))},
				{"Tokens saved", strconv.Itoa(req.TokensSaved)},
			}
			if err := writeKeyValues(w, pairs); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Routed in %v\n", duration)
			return err
		},
	})
}

// WriteAnalysis prints the complexity breakdown of one query.
func (ow *OutWriter) WriteAnalysis(query string, score schema.ComplexityScore, cfg *contract.Config) error {
	fmtFloat := floatFormatter(cfg.Precision)

	type analysisOutput struct {
		Query string `json:"query"`
		schema.ComplexityScore
	}

	row := []string{query, fmtFloat(score.Overall), string(score.Domain)}
	header := []string{"query", "overall", "domain"}
	for _, d := range schema.AllDimensions {
		header = append(header, string(d))
		row = append(row, fmtFloat(score.Dimensions[d]))
	}

	return render(cfg, view{
		json:   analysisOutput{Query: query, ComplexityScore: score},
		header: header,
		rows:   [][]string{row},
		text: func(w io.Writer) error {
			weights := schema.DefaultDimensionWeights()
			var rows [][]string
			for _, d := range schema.AllDimensions {
				rows = append(rows, []string{string(d), fmtFloat(score.Dimensions[d]), fmtFloat(weights[d])})
			}
			rows = append(rows,
				[]string{"domain", orDash(string(score.Domain)), ""},
				[]string{"overall", fmtFloat(score.Overall), ""},
			)
			return writeKeyValuesWithWeight(w, rows)
		},
	})
}

func writeKeyValuesWithWeight(w io.Writer, rows [][]string) error {
	return writeTable(w, []string{"Dimension", "Value", "Weight"}, rows, alignRight)
}

// WriteRefinement prints a refined query and the tokens it saves.
func (ow *OutWriter) WriteRefinement(r schema.Refinement, cfg *contract.Config) error {
	width := GetMaxTableTextWidth(cfg)
	return render(cfg, view{
		json:   r,
		header: []string{"query", "refined", "domain", "tokens_before", "tokens_after"},
		rows: [][]string{{
			r.Query, r.Refined, string(r.Domain), strconv.Itoa(r.TokensBefore), strconv.Itoa(r.TokensAfter),
		}},
		text: func(w io.Writer) error {
			return writeKeyValues(w, [][]string{
				{"Query", contract.TruncateText(r.Query, width)},
				{"Refined", contract.TruncateText(orDash(r.Refined), width)},
				{"Domain", orDash(string(r.Domain))},
				{"Tokens", fmt.Sprintf("%d -> %d", r.TokensBefore, r.TokensAfter)},
			})
		},
	})
}

// WriteCalibration prints the result of a calibration pass.
func (ow *OutWriter) WriteCalibration(ev schema.CalibrationEvent, applied bool, threshold float64, cfg *contract.Config) error {
	fmtFloat := floatFormatter(cfg.Precision)

	type calibrationOutput struct {
		Applied   bool                     `json:"applied"`
		Threshold float64                  `json:"threshold"`
		Event     *schema.CalibrationEvent `json:"event,omitempty"`
	}
	out := calibrationOutput{Applied: applied, Threshold: threshold}
	var rows [][]string
	if applied {
		out.Event = &ev
		for _, kind := range schema.AllBackendKinds {
			rows = append(rows, []string{
				ev.Timestamp.Format(contract.DateTimeFormat),
				string(kind),
				strconv.Itoa(ev.SampleSizes[kind]),
				fmtFloat(ev.AvgRatings[kind]),
				fmtFloat(ev.OldThreshold),
				fmtFloat(ev.NewThreshold),
			})
		}
	}

	return render(cfg, view{
		json:   out,
		header: []string{"timestamp", "backend", "samples", "avg_rating", "old_threshold", "new_threshold"},
		rows:   rows,
		text: func(w io.Writer) error {
			if !applied {
				_, err := fmt.Fprintf(w, "Not enough feedback to calibrate. Threshold stays at %s\n", fmtFloat(threshold))
				return err
			}
			var table [][]string
			for _, kind := range schema.AllBackendKinds {
				avg := ev.AvgRatings[kind]
				table = append(table, []string{
					backendLabel(kind, cfg),
					strconv.Itoa(ev.SampleSizes[kind]),
					ratingLabel(fmtFloat(avg), avg, cfg),
				})
			}
			if err := writeTable(w, []string{"Backend", "Samples", "Avg Rating"}, table, alignRight); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Threshold moved from %s to %s\n", fmtFloat(ev.OldThreshold), fmtFloat(ev.NewThreshold))
			return err
		},
	})
}
