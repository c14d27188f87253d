package susceptibility

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/YuminosukeSato/firehazard/pkg/log"
)

// Importance is the importance of one feature, or of the summed density
// features under the name "perc".
type Importance struct {
	Name  string
	Value float64
}

// Report holds the evaluation metrics of a fitted model.
type Report struct {
	Model       string
	AUCTrain    float64
	AUCTest     float64
	MSE         float64
	LogLoss     float64
	Accuracy    float64
	Importances []Importance
}

// LogValue implements slog.LogValuer.
func (r *Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String(log.ModelNameKey, r.Model),
		slog.Float64(log.AUCTrainKey, r.AUCTrain),
		slog.Float64(log.AUCTestKey, r.AUCTest),
		slog.Float64(log.MSEKey, r.MSE),
		slog.Float64(log.LogLossKey, r.LogLoss),
		slog.Float64(log.AccuracyKey, r.Accuracy),
	}
	if len(r.Importances) > 0 {
		imp := make([]slog.Attr, len(r.Importances))
		for i, fi := range r.Importances {
			imp[i] = slog.Float64(fi.Name, fi.Value)
		}
		attrs = append(attrs, slog.Attr{Key: "importances", Value: slog.GroupValue(imp...)})
	}
	return slog.GroupValue(attrs...)
}

// AggregateImportances pairs columns with importances, replaces every
// perc_* column by a single "perc" entry holding their sum and sorts by
// value, highest first. Ties keep column order.
func AggregateImportances(columns []string, importances []float64) []Importance {
	if len(columns) != len(importances) {
		return nil
	}
	var out []Importance
	percAt := -1
	for i, c := range columns {
		if strings.HasPrefix(c, DensityPrefix) {
			if percAt < 0 {
				percAt = len(out)
				out = append(out, Importance{Name: "perc"})
			}
			out[percAt].Value += importances[i]
			continue
		}
		out = append(out, Importance{Name: c, Value: importances[i]})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Value > out[b].Value })
	return out
}
