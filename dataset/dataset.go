// Package dataset loads the voice-measurement table into an immutable
// in-memory Dataset.
//
// The input is a CSV file with a header row. The identifier column (default
// "name") is dropped, the label column (default "status") must hold 0 or 1,
// every other column is a numeric feature.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
)

// DefaultSource is the UCI location of the Parkinson's voice dataset.
const DefaultSource = "https://archive.ics.uci.edu/ml/machine-learning-databases/parkinsons/parkinsons.data"

// Options controls how the CSV is interpreted.
type Options struct {
	IDColumn    string // dropped if present
	LabelColumn string // required, values 0/1
}

// DefaultOptions returns the column names of the UCI file.
func DefaultOptions() Options {
	return Options{IDColumn: "name", LabelColumn: "status"}
}

// Dataset is an ordered set of records. It is never modified after Read;
// accessors return copies.
type Dataset struct {
	features     *mat.Dense
	labels       []int
	featureNames []string
	labelName    string
	dropped      int
}

// Features returns a copy of the feature matrix.
func (d *Dataset) Features() *mat.Dense {
	return mat.DenseCopyOf(d.features)
}

// Labels returns a copy of the label vector.
func (d *Dataset) Labels() []int {
	out := make([]int, len(d.labels))
	copy(out, d.labels)
	return out
}

// FeatureNames returns the feature column names in file order.
func (d *Dataset) FeatureNames() []string {
	out := make([]string, len(d.featureNames))
	copy(out, d.featureNames)
	return out
}

// LabelName returns the label column name.
func (d *Dataset) LabelName() string { return d.labelName }

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.labels) }

// NumFeatures returns the number of feature columns.
func (d *Dataset) NumFeatures() int { return len(d.featureNames) }

// DuplicatesDropped returns how many duplicated rows Read removed.
func (d *Dataset) DuplicatesDropped() int { return d.dropped }

// ClassCounts returns the number of records per label.
func (d *Dataset) ClassCounts() map[int]int {
	counts := map[int]int{0: 0, 1: 0}
	for _, y := range d.labels {
		counts[y]++
	}
	return counts
}

// FeatureSummary holds descriptive statistics of one feature column.
type FeatureSummary struct {
	Name string
	Min  float64
	Max  float64
	Mean float64
	Std  float64
}

// Describe returns per-feature min, max, mean and sample standard deviation.
func (d *Dataset) Describe() []FeatureSummary {
	n, p := d.features.Dims()
	out := make([]FeatureSummary, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, d.features)
		mean, std := stat.MeanStdDev(col, nil)
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if n < 2 {
			std = 0
		}
		out[j] = FeatureSummary{Name: d.featureNames[j], Min: lo, Max: hi, Mean: mean, Std: std}
	}
	return out
}

// New builds a Dataset from an in-memory matrix. Labels must be 0 or 1.
// The inputs are copied.
func New(X mat.Matrix, y []int, featureNames []string, labelName string) (*Dataset, error) {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewSchemaError(labelName, 0, "dataset has no rows or no feature columns")
	}
	if len(y) != n {
		return nil, errors.NewShapeMismatchError("dataset.New", n, len(y), 0)
	}
	if len(featureNames) != p {
		return nil, errors.NewShapeMismatchError("dataset.New", p, len(featureNames), 1)
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, errors.NewSchemaError(labelName, i+1, fmt.Sprintf("label %d is not binary", v))
		}
	}
	d := &Dataset{
		features:     mat.DenseCopyOf(X),
		labels:       append([]int(nil), y...),
		featureNames: append([]string(nil), featureNames...),
		labelName:    labelName,
	}
	return d, nil
}

// Read parses a CSV stream into a Dataset. Duplicate rows are dropped with a
// DuplicateRowsWarning; the first occurrence is kept.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	if opts.LabelColumn == "" {
		opts.LabelColumn = "status"
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError(opts.LabelColumn, 0, "input is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	labelIdx := -1
	var featureIdx []int
	var featureNames []string
	for i, name := range header {
		switch {
		case name == opts.LabelColumn:
			labelIdx = i
		case opts.IDColumn != "" && name == opts.IDColumn:
			// identifier, dropped
		default:
			featureIdx = append(featureIdx, i)
			featureNames = append(featureNames, name)
		}
	}
	if labelIdx < 0 {
		return nil, errors.NewSchemaError(opts.LabelColumn, 0, "label column is missing")
	}
	if len(featureIdx) == 0 {
		return nil, errors.NewSchemaError(opts.LabelColumn, 0, "no feature columns")
	}
	var (
		data   []float64
		labels []int
		seen   = make(map[string]struct{})
		dups   int
		row    int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read CSV record")
		}
		row++
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) != len(header) {
			return nil, errors.NewSchemaError(opts.LabelColumn, row,
				fmt.Sprintf("expected %d fields, got %d", len(header), len(record)))
		}

		label, err := parseLabel(record[labelIdx])
		if err != nil {
			return nil, errors.WrapSchemaError(err, opts.LabelColumn, row)
		}
		values := make([]float64, len(featureIdx))
		for j, idx := range featureIdx {
			v, err := parseFeature(record[idx])
			if err != nil {
				return nil, errors.WrapSchemaError(err, featureNames[j], row)
			}
			values[j] = v
		}

		key := rowKey(values, label)
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
		data = append(data, values...)
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return nil, errors.NewSchemaError(opts.LabelColumn, 0, "no data rows")
	}

	if dups > 0 {
		errors.Warn(&errors.DuplicateRowsWarning{Dropped: dups})
	}

	return &Dataset{
		features:     mat.NewDense(len(labels), len(featureIdx), data),
		labels:       labels,
		featureNames: featureNames,
		labelName:    opts.LabelColumn,
		dropped:      dups,
	}, nil
}

func parseLabel(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("label is missing")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "label %q is not numeric", s)
	}
	switch v {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	}
	return 0, errors.Newf("label %q is not binary", s)
}

func parseFeature(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("value is missing")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "value %q is not numeric", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Newf("value %q is not finite", s)
	}
	return v, nil
}

// rowKey identifies a row by its exact values. -0 and 0 share a key.
func rowKey(values []float64, label int) string {
	var b strings.Builder
	for _, v := range values {
		if v == 0 {
			v = 0
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(',')
	}
	b.WriteString(strconv.Itoa(label))
	return b.String()
}

// ReadFile reads a CSV file from disk.
func ReadFile(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close()
	return Read(f, opts)
}

// Fetch returns a local path for source. An http(s) URL is downloaded to
// cachePath; anything else is treated as a local path and returned as is.
func Fetch(ctx context.Context, source, cachePath string) (string, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return source, nil
	}
	if cachePath == "" {
		cachePath = filepath.Base(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", errors.Wrapf(err, "invalid dataset URL %s", source)
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "failed to download %s", source)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Newf("failed to download %s: HTTP %d", source, resp.StatusCode)
	}

	if dir := filepath.Dir(cachePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	tmp := cachePath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", tmp)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to close %s", tmp)
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		return "", errors.Wrapf(err, "failed to move %s", tmp)
	}
	return cachePath, nil
}

// Load fetches source (if it is a URL) and parses it.
func Load(ctx context.Context, source, cachePath string, opts Options) (*Dataset, error) {
	logger := log.GetLoggerWithName("dataset")
	path, err := Fetch(ctx, source, cachePath)
	if err != nil {
		return nil, err
	}
	d, err := ReadFile(path, opts)
	if err != nil {
		return nil, err
	}
	counts := d.ClassCounts()
	logger.Info("Dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.SourceKey, source,
		log.SamplesKey, d.Len(),
		log.FeaturesKey, d.NumFeatures(),
		log.ClassCountsKey, fmt.Sprintf("0:%d 1:%d", counts[0], counts[1]),
		"duplicates_dropped", d.dropped,
	)
	return d, nil
}
