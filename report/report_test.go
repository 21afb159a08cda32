package report

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/pdbench/metrics"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

func sampleEntries() []Entry {
	return []Entry{
		{Name: "DT", Report: metrics.Report{Accuracy: 0.9, F1: 0.8, Recall: 0.75, Precision: 0.5, R2: 0.25}},
		{Name: "SVM", Report: metrics.Report{Accuracy: 1, F1: 1, Recall: 1, Precision: 1, R2: 1}},
	}
}

func TestCompare(t *testing.T) {
	table, err := Compare(sampleEntries())
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Models) != 2 || table.Models[0] != "DT" || table.Models[1] != "SVM" {
		t.Fatalf("models = %v, want input order", table.Models)
	}
	if len(table.Metrics) != 5 {
		t.Fatalf("got %d rows, want 5", len(table.Metrics))
	}

	tests := []struct {
		metric, model string
		want          float64
	}{
		{"Accuracy", "DT", 0.9},
		{"F1-Score", "DT", 0.8},
		{"Recall", "DT", 0.75},
		{"Precision", "DT", 0.5},
		{"R2-Score", "DT", 0.25},
		{"Accuracy", "SVM", 1},
	}
	for _, tt := range tests {
		got, ok := table.Value(tt.metric, tt.model)
		if !ok || got != tt.want {
			t.Errorf("Value(%s, %s) = %v, %v; want %v", tt.metric, tt.model, got, ok, tt.want)
		}
	}
	if _, ok := table.Value("AUC", "DT"); ok {
		t.Error("AUC is not a table row")
	}
	if _, ok := table.Value("Accuracy", "KNN"); ok {
		t.Error("unknown model must not resolve")
	}
}

func TestCompareErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{"duplicate", []Entry{{Name: "DT"}, {Name: "DT"}}},
		{"empty name", []Entry{{Name: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *errors.ConfigurationError
			if _, err := Compare(tt.entries); !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestRender(t *testing.T) {
	table, _ := Compare(sampleEntries())
	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want header + 5 rows:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "DT") || !strings.Contains(lines[0], "SVM") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Accuracy") || !strings.Contains(lines[1], "0.900000") {
		t.Errorf("accuracy row = %q", lines[1])
	}
	// right aligned columns end at the same offset
	for i := 1; i < len(lines); i++ {
		if len(lines[i]) != len(lines[0]) {
			t.Errorf("line %d width %d differs from header width %d", i, len(lines[i]), len(lines[0]))
		}
	}
}

func TestWriteCSV(t *testing.T) {
	table, _ := Compare(sampleEntries())
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	want := ",DT,SVM\n" +
		"Accuracy,0.9,1\n" +
		"F1-Score,0.8,1\n" +
		"Recall,0.75,1\n" +
		"Precision,0.5,1\n" +
		"R2-Score,0.25,1\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestExportMetrics(t *testing.T) {
	table, _ := Compare(sampleEntries())
	path := filepath.Join(t.TempDir(), "pdbench.prom")
	if err := ExportMetrics(path, "run-1", table); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var samples int
	found := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "pdbench_model_metric{") {
			continue
		}
		samples++
		if strings.Contains(line, `metric="Recall"`) && strings.Contains(line, `model="DT"`) &&
			strings.Contains(line, `run_id="run-1"`) && strings.HasSuffix(line, " 0.75") {
			found = true
		}
	}
	if samples != 10 {
		t.Errorf("got %d samples, want 10", samples)
	}
	if !found {
		t.Error("Recall/DT sample not found")
	}
}

func TestPlots(t *testing.T) {
	dir := t.TempDir()
	roc := filepath.Join(dir, "roc.png")
	err := PlotROC(roc, []ROCSeries{
		{Name: "DT", FPR: []float64{0, 0.2, 1}, TPR: []float64{0, 0.9, 1}, AUC: 0.85},
		{Name: "SVM", FPR: []float64{0, 1}, TPR: []float64{0, 1}, AUC: 0.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	sweep := filepath.Join(dir, "knn.png")
	if err := PlotKNNSweep(sweep, []SweepPoint{{2, 0.9}, {3, 0.92}, {4, 0.88}}); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{roc, sweep} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(data, []byte("\x89PNG")) {
			t.Errorf("%s is not a PNG", path)
		}
	}

	if err := PlotROC(roc, nil); err == nil {
		t.Error("expected an error for no curves")
	}
	if err := PlotROC(roc, []ROCSeries{{Name: "x", FPR: []float64{0}, TPR: nil}}); err == nil {
		t.Error("expected an error for mismatched curve lengths")
	}
}
