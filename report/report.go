// Package report はモデルごとの評価結果を一つの比較表にまとめ、
// テキスト・CSV・グラフ・Prometheus textfile として出力する。
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/YuminosukeSato/pdbench/metrics"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// Rows は比較表の行名 (表示順)
var Rows = []string{"Accuracy", "F1-Score", "Recall", "Precision", "R2-Score"}

// Entry は一つのモデルの評価結果
type Entry struct {
	Name   string
	Report metrics.Report
}

// Table は行 = 指標、列 = モデルの比較表
type Table struct {
	Models  []string
	Metrics []string
	values  [][]float64 // [metric][model]
}

// Compare は評価結果を入力順の列に並べた比較表を作る。
// モデル名の重複や空の名前は ConfigurationError。
func Compare(entries []Entry) (*Table, error) {
	t := &Table{
		Metrics: append([]string(nil), Rows...),
		values:  make([][]float64, len(Rows)),
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, errors.NewConfigurationError("model", "name must not be empty", e.Name)
		}
		if seen[e.Name] {
			return nil, errors.NewConfigurationError("model", "duplicate model name", e.Name)
		}
		seen[e.Name] = true
		t.Models = append(t.Models, e.Name)
	}
	for i, metric := range t.Metrics {
		row := make([]float64, len(entries))
		for j, e := range entries {
			row[j], _ = e.Report.Value(metric)
		}
		t.values[i] = row
	}
	return t, nil
}

// Value は指標 metric とモデル model のセルを返す
func (t *Table) Value(metric, model string) (float64, bool) {
	i := indexOf(t.Metrics, metric)
	j := indexOf(t.Models, model)
	if i < 0 || j < 0 {
		return 0, false
	}
	return t.values[i][j], true
}

func indexOf(s []string, v string) int {
	for i := range s {
		if s[i] == v {
			return i
		}
	}
	return -1
}

// Render は列を揃えたテキスト表を書き出す
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\t")
	for _, m := range t.Models {
		fmt.Fprintf(tw, "%s\t", m)
	}
	fmt.Fprintln(tw)
	for i, metric := range t.Metrics {
		fmt.Fprintf(tw, "%s\t", metric)
		for _, v := range t.values[i] {
			fmt.Fprintf(tw, "%.6f\t", v)
		}
		fmt.Fprintln(tw)
	}
	return errors.Wrap(tw.Flush(), "render comparison table")
}

// WriteCSV は比較表を CSV で書き出す。先頭列は指標名
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, t.Models...)); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for i, metric := range t.Metrics {
		record := []string{metric}
		for _, v := range t.values[i] {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write csv row %s", metric)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
