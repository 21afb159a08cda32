package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"

	pderrors "github.com/YuminosukeSato/pdbench/pkg/errors"
)

// TestLoggerInterface tests the TestLogger implementation of Logger
func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", "operation", "test")
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), "error_code", "TEST_ERROR")

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}

	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}

	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrorKey, "test error") {
		t.Error("leading error value should be stored under the error key")
	}
}

func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "RF",
		RunIDKey, "run-001",
	)
	contextLogger.Info("contextual message", OperationKey, OperationFit)

	tests := []struct {
		key   string
		value interface{}
	}{
		{ModelNameKey, "RF"},
		{RunIDKey, "run-001"},
		{OperationKey, OperationFit},
	}
	for _, tt := range tests {
		if !testLogger.ContainsField(tt.key, tt.value) {
			t.Errorf("field %s=%v not found", tt.key, tt.value)
		}
	}

	// 親ロガーにはフィールドが付与されない
	testLogger.Clear()
	testLogger.Info("plain")
	if testLogger.ContainsField(ModelNameKey, "RF") {
		t.Error("With must not modify the parent logger")
	}
}

func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)
	ctx := context.Background()

	tests := []struct {
		level Level
		want  bool
	}{
		{LevelDebug, false},
		{LevelInfo, false},
		{LevelWarn, true},
		{LevelError, true},
	}
	for _, tt := range tests {
		if got := testLogger.Enabled(ctx, tt.level); got != tt.want {
			t.Errorf("Enabled(%s) = %v, want %v", tt.level, got, tt.want)
		}
	}

	testLogger.Info("suppressed")
	if testLogger.ContainsMessage("suppressed") {
		t.Error("info record should be filtered at warn level")
	}
}

func TestTestLoggerProvider(t *testing.T) {
	provider, _ := NewTestLoggerProvider(LevelInfo)
	logger := provider.GetLoggerWithName("dataset")
	logger.Debug("hidden")
	logger.Info("visible")

	tl := provider.Logger()
	if tl.ContainsMessage("hidden") {
		t.Error("debug record should be filtered")
	}
	if !tl.ContainsField(ComponentKey, "dataset") {
		t.Error("component name not attached")
	}

	provider.SetLevel(LevelDebug)
	logger.Debug("now visible")
	if !tl.ContainsMessage("now visible") {
		t.Error("SetLevel should apply to existing child loggers")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *pderrors.ConfigurationError
				if !pderrors.As(err, &cfgErr) {
					t.Errorf("expected ConfigurationError, got %T", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestZerologProviderJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo, true)

	logger := p.GetLoggerWithName("pipeline").With(RunIDKey, "abc")
	logger.Debug("dropped")
	logger.Info("fitted", ModelNameKey, "DT", AccuracyKey, 0.9, SamplesKey, 195)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 record, got %d: %s", len(entries), buf.String())
	}
	e := entries[0]
	if e["message"] != "fitted" {
		t.Errorf("message = %v", e["message"])
	}
	if e[ComponentKey] != "pipeline" || e[RunIDKey] != "abc" || e[ModelNameKey] != "DT" {
		t.Errorf("context fields missing: %v", e)
	}
	if e[AccuracyKey] != 0.9 || e[SamplesKey] != 195.0 {
		t.Errorf("numeric fields wrong: %v", e)
	}
}

func TestZerologProviderErrorFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelDebug, true)

	err := pderrors.NewSchemaError("status", 0, "label column is missing")
	p.GetLogger().Error("load failed", err, OperationKey, OperationLoad)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 record, got %d", len(entries))
	}
	e := entries[0]
	if !strings.Contains(fmt.Sprint(e[ErrorKey]), "label column is missing") {
		t.Errorf("error text missing: %v", e)
	}
	details, ok := e[ErrorKey+".details"].(map[string]interface{})
	if !ok || details["type"] != "SchemaError" {
		t.Errorf("structured details missing: %v", e)
	}
	if e[OperationKey] != OperationLoad {
		t.Errorf("operation field missing: %v", e)
	}
}

func TestZerologSetLevel(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelError, true)
	p.GetLogger().Warn("first")
	p.SetLevel(LevelWarn)
	p.GetLogger().Warn("second")

	out := buf.String()
	if strings.Contains(out, "first") {
		t.Error("warn should be suppressed at error level")
	}
	if !strings.Contains(out, "second") {
		t.Error("warn should pass after SetLevel(LevelWarn)")
	}
	if p.GetLogger().Enabled(context.Background(), LevelInfo) {
		t.Error("info should not be enabled at warn level")
	}
}

func TestSetupRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup("info", true, &buf); err != nil {
		t.Fatal(err)
	}
	defer func() {
		pderrors.SetZerologWarnFunc(nil)
		SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, false))
	}()

	pderrors.Warn(pderrors.NewConvergenceWarning("LogisticRegression", 100, "gradient norm above tolerance"))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning record, got %d", len(entries))
	}
	if entries[0]["level"] != "warn" {
		t.Errorf("level = %v, want warn", entries[0]["level"])
	}
	if entries[0][ComponentKey] != "warnings" {
		t.Errorf("component = %v", entries[0][ComponentKey])
	}

	if err := Setup("loud", true, &buf); err == nil {
		t.Error("Setup should reject an unknown level")
	}
}

func TestExtractStacktrace(t *testing.T) {
	if got := extractStacktrace(fmt.Errorf("plain")); got != "" {
		t.Errorf("plain error should have no stacktrace, got %q", got)
	}
	// WithStack が付与されていてもパニックしないこと
	_ = extractStacktrace(errors.WithStack(fmt.Errorf("with stack")))
}

func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	const numGoroutines = 10
	const messagesPerGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := testLogger.With("goroutine_id", id)
			for j := 0; j < messagesPerGoroutine; j++ {
				l.Info("concurrent message", "message_id", j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != numGoroutines*messagesPerGoroutine {
		t.Errorf("Expected %d entries, got %d", numGoroutines*messagesPerGoroutine, len(entries))
	}
}

func BenchmarkZerologInfo(b *testing.B) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelInfo, true).GetLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark", OperationKey, OperationFit, SamplesKey, 1000)
	}
}

func BenchmarkDisabledLogging(b *testing.B) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelError, true).GetLogger()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if logger.Enabled(ctx, LevelDebug) {
			logger.Debug("never", "i", i)
		}
	}
}
