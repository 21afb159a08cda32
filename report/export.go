package report

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// ExportMetrics writes every cell of the table as a
// pdbench_model_metric{model,metric,run_id} gauge in the Prometheus text
// format, for the node exporter textfile collector.
func ExportMetrics(path, runID string, t *Table) error {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pdbench",
			Name:      "model_metric",
			Help:      "Held-out evaluation metric of one model in one benchmark run.",
		},
		[]string{"model", "metric", "run_id"},
	)
	if err := reg.Register(gauge); err != nil {
		return errors.Wrap(err, "register gauge")
	}
	for i, metric := range t.Metrics {
		for j, model := range t.Models {
			gauge.WithLabelValues(model, metric, runID).Set(t.values[i][j])
		}
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, reg), "write textfile %s", path)
}
