package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

const sampleCSV = `name,MDVP:Fo(Hz),MDVP:Fhi(Hz),status,PPE
phon_R01_S01_1,119.992,157.302,1,0.284654
phon_R01_S01_2,122.400,148.650,1,0.368674
phon_R01_S50_1,197.076,206.896,0,0.085569
phon_R01_S50_2,199.228,209.512,0,0.068501
`

func TestReadDropsIdentifierAndSeparatesLabel(t *testing.T) {
	d, err := Read(strings.NewReader(sampleCSV), DefaultOptions())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if d.Len() != 4 || d.NumFeatures() != 3 {
		t.Fatalf("got %d rows x %d features, want 4 x 3", d.Len(), d.NumFeatures())
	}
	wantNames := []string{"MDVP:Fo(Hz)", "MDVP:Fhi(Hz)", "PPE"}
	for i, name := range d.FeatureNames() {
		if name != wantNames[i] {
			t.Errorf("feature %d = %q, want %q", i, name, wantNames[i])
		}
	}
	if got := d.Labels(); got[0] != 1 || got[3] != 0 {
		t.Errorf("labels = %v", got)
	}
	if v := d.Features().At(2, 2); v != 0.085569 {
		t.Errorf("PPE of row 2 = %v", v)
	}

	counts := d.ClassCounts()
	if counts[0] != 2 || counts[1] != 2 {
		t.Errorf("ClassCounts = %v", counts)
	}
}

func TestReadIsImmutable(t *testing.T) {
	d, err := Read(strings.NewReader(sampleCSV), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	X := d.Features()
	X.Set(0, 0, -1)
	y := d.Labels()
	y[0] = 0

	if d.Features().At(0, 0) == -1 || d.Labels()[0] == 0 {
		t.Error("mutating returned copies must not change the dataset")
	}
}

func TestReadSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column string
	}{
		{
			name:   "missing label column",
			input:  "name,a,b\nx,1,2\n",
			column: "status",
		},
		{
			name:   "non-binary label",
			input:  "name,a,status\nx,1,2\n",
			column: "status",
		},
		{
			name:   "non-numeric feature",
			input:  "name,a,status\nx,abc,1\n",
			column: "a",
		},
		{
			name:   "missing feature value",
			input:  "name,a,status\nx,,1\n",
			column: "a",
		},
		{
			name:   "infinite feature value",
			input:  "name,a,status\nx,Inf,1\n",
			column: "a",
		},
		{
			name:   "ragged row",
			input:  "name,a,status\nx,1\n",
			column: "status",
		},
		{
			name:   "no feature columns",
			input:  "name,status\nx,1\n",
			column: "status",
		},
		{
			name:   "header only",
			input:  "name,a,status\n",
			column: "status",
		},
		{
			name:   "empty input",
			input:  "",
			column: "status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), DefaultOptions())
			if err == nil {
				t.Fatal("expected error")
			}
			var schemaErr *errors.SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %T: %v", err, err)
			}
			if schemaErr.Column != tt.column {
				t.Errorf("Column = %q, want %q", schemaErr.Column, tt.column)
			}
		})
	}
}

func TestReadWithoutIdentifierColumn(t *testing.T) {
	d, err := Read(strings.NewReader("a,b,status\n1,2,0\n3,4,1\n"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if d.NumFeatures() != 2 {
		t.Errorf("NumFeatures = %d, want 2", d.NumFeatures())
	}
}

func TestReadDropsDuplicates(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	errors.SetZerologWarnFunc(nil)
	defer errors.SetWarningHandler(func(error) {})

	input := "name,a,b,status\nr1,1,2,0\nr2,1,2,0\nr3,1,2,1\nr4,5,6,1\n"
	d, err := Read(strings.NewReader(input), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != 3 {
		t.Errorf("Len = %d, want 3 (one duplicate dropped)", d.Len())
	}
	if d.DuplicatesDropped() != 1 {
		t.Errorf("DuplicatesDropped = %d, want 1", d.DuplicatesDropped())
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	var dupWarn *errors.DuplicateRowsWarning
	if !errors.As(warnings[0], &dupWarn) || dupWarn.Dropped != 1 {
		t.Errorf("unexpected warning: %v", warnings[0])
	}
}

func TestReadDuplicateSignedZero(t *testing.T) {
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(error) {})

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "negative zero first", input: "a,b,status\n-0,2,0\n0,2,0\n", want: 1},
		{name: "negative zero second", input: "a,b,status\n0.0,2,1\n-0.0,2,1\n", want: 1},
		{name: "different label", input: "a,b,status\n-0,2,0\n0,2,1\n", want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Read(strings.NewReader(tt.input), DefaultOptions())
			if err != nil {
				t.Fatal(err)
			}
			if d.Len() != tt.want {
				t.Errorf("Len = %d, want %d", d.Len(), tt.want)
			}
		})
	}
}

func TestReadSchemaErrorCause(t *testing.T) {
	_, err := Read(strings.NewReader("name,a,status\nx,abc,1\n"), DefaultOptions())
	var schemaErr *errors.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Row != 1 || !strings.Contains(schemaErr.Reason, `value "abc" is not numeric`) {
		t.Errorf("SchemaError = %+v", schemaErr)
	}
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) || numErr.Num != "abc" {
		t.Errorf("parse error not reachable from %v", err)
	}

	_, err = Read(strings.NewReader("name,a,status\nx,1,yes\n"), DefaultOptions())
	if !errors.As(err, &schemaErr) || schemaErr.Column != "status" || schemaErr.Cause == nil {
		t.Errorf("label SchemaError = %v", err)
	}
}

func TestDescribe(t *testing.T) {
	d, err := Read(strings.NewReader("a,b,status\n1,10,0\n2,10,1\n3,10,0\n"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	summary := d.Describe()
	if len(summary) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summary))
	}
	a := summary[0]
	if a.Name != "a" || a.Min != 1 || a.Max != 3 || a.Mean != 2 || a.Std != 1 {
		t.Errorf("summary of a = %+v", a)
	}
	if summary[1].Std != 0 {
		t.Errorf("constant column std = %v", summary[1].Std)
	}
}

func TestNew(t *testing.T) {
	d, err := Read(strings.NewReader(sampleCSV), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	d2, err := New(d.Features(), d.Labels(), d.FeatureNames(), "status")
	if err != nil {
		t.Fatal(err)
	}
	if d2.Len() != d.Len() {
		t.Errorf("Len = %d", d2.Len())
	}
	if _, err := New(d.Features(), []int{0, 1, 2, 0}, d.FeatureNames(), "status"); err == nil {
		t.Error("expected error for non-binary label")
	}
	if _, err := New(d.Features(), []int{0, 1}, d.FeatureNames(), "status"); err == nil {
		t.Error("expected error for label count mismatch")
	}
}

func TestFetchAndLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parkinsons.data" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "cache", "data.csv")
	ctx := context.Background()

	d, err := Load(ctx, srv.URL+"/parkinsons.data", cache, DefaultOptions())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Len() != 4 {
		t.Errorf("Len = %d, want 4", d.Len())
	}
	raw, err := os.ReadFile(cache)
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	if string(raw) != sampleCSV {
		t.Error("cached copy differs from the downloaded body")
	}

	if _, err := Fetch(ctx, srv.URL+"/missing", cache); err == nil {
		t.Error("expected error for HTTP 404")
	}

	// ローカルパスはそのまま返す
	got, err := Fetch(ctx, cache, "ignored.csv")
	if err != nil || got != cache {
		t.Errorf("Fetch(local) = %q, %v", got, err)
	}
}
