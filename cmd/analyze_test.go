package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bimmerbailey/ctxlens/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newAnalyzeTestCmd(out, errOut *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{Use: "analyze"}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	addFilterFlags(cmd)
	cmd.Flags().Int("top", 5, "number of highest-saving requests to show")
	cmd.Flags().String("csv", "", "export CSV")
	cmd.Flags().String("sqlite", "", "store run")
	cmd.Flags().Bool("watch", false, "watch")
	cmd.Flags().String("debounce", "", "debounce")
	cmd.Flags().Bool("no-color", false, "disable colored output")
	return cmd
}

func TestAnalyzeText(t *testing.T) {
	viper.Reset()
	viper.Set("format", "text")

	file := writeTempFile(t, t.TempDir(), "gateway.log", sampleLog())

	var out, errOut bytes.Buffer
	cmd := newAnalyzeTestCmd(&out, &errOut)

	if err := runAnalyze(cmd, []string{file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"=== Context Reduction Report ===",
		"Lines scanned: 7",
		"Matched requests: 2",
		"With reduction stats: 2",
		"Total bytes saved: 2,600",
		"Input too long: 1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in report, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Errorf("expected no ANSI escapes when writing to a buffer, got:\n%s", got)
	}
}

func TestAnalyzeJSON(t *testing.T) {
	viper.Reset()
	viper.Set("format", "json")

	file := writeTempFile(t, t.TempDir(), "gateway.log", sampleLog())

	var out, errOut bytes.Buffer
	cmd := newAnalyzeTestCmd(&out, &errOut)

	if err := runAnalyze(cmd, []string{file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}

	var summary map[string]any
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out.String())
	}
	if summary["matched_requests"] != float64(2) {
		t.Errorf("matched_requests = %v, want 2", summary["matched_requests"])
	}
	if summary["total_bytes_saved"] != float64(2600) {
		t.Errorf("total_bytes_saved = %v, want 2600", summary["total_bytes_saved"])
	}
	layers, ok := summary["layers"].(map[string]any)
	if !ok {
		t.Fatalf("layers missing from %v", summary)
	}
	if layers["whitespace"] != float64(2600) {
		t.Errorf("layers.whitespace = %v, want 2600", layers["whitespace"])
	}
}

func TestAnalyzeTable(t *testing.T) {
	viper.Reset()
	viper.Set("format", "table")

	file := writeTempFile(t, t.TempDir(), "gateway.log", sampleLog())

	var out, errOut bytes.Buffer
	cmd := newAnalyzeTestCmd(&out, &errOut)

	if err := runAnalyze(cmd, []string{file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "MODEL") || !strings.Contains(got, "claude-opus-4") {
		t.Errorf("expected request table, got:\n%s", got)
	}
}

func TestAnalyzeFlagsOverrideConfig(t *testing.T) {
	viper.Reset()
	viper.Set("format", "text")
	viper.Set("analysis.model", "opus")

	file := writeTempFile(t, t.TempDir(), "gateway.log", sampleLog())

	var out, errOut bytes.Buffer
	cmd := newAnalyzeTestCmd(&out, &errOut)
	if err := runAnalyze(cmd, []string{file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}
	if !strings.Contains(out.String(), "Matched requests: 1") {
		t.Errorf("expected config model filter to apply, got:\n%s", out.String())
	}

	out.Reset()
	cmd = newAnalyzeTestCmd(&out, &errOut)
	if err := cmd.Flags().Set("model", "gpt"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := runAnalyze(cmd, []string{file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Matched requests: 0") {
		t.Errorf("expected flag to override config, got:\n%s", got)
	}
	if !strings.Contains(got, "No reduction statistics found.") {
		t.Errorf("expected empty report, got:\n%s", got)
	}
}

func TestAnalyzeMinTokens(t *testing.T) {
	viper.Reset()
	viper.Set("format", "text")

	file := writeTempFile(t, t.TempDir(), "gateway.log", sampleLog())

	var out, errOut bytes.Buffer
	cmd := newAnalyzeTestCmd(&out, &errOut)
	if err := cmd.Flags().Set("min-tokens", "2000"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := runAnalyze(cmd, []string{file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Matched requests: 1") || !strings.Contains(got, "Total bytes saved: 600") {
		t.Errorf("expected only the large request, got:\n%s", got)
	}
}

func TestAnalyzeStdin(t *testing.T) {
	viper.Reset()
	viper.Set("format", "json")

	var out, errOut bytes.Buffer
	cmd := newAnalyzeTestCmd(&out, &errOut)
	cmd.SetIn(strings.NewReader(joinLines(sampleLog())))

	if err := runAnalyze(cmd, []string{"-"}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}
	if !strings.Contains(out.String(), `"total_lines": 7`) {
		t.Errorf("expected stdin to be read, got:\n%s", out.String())
	}
}

func TestAnalyzeExports(t *testing.T) {
	viper.Reset()
	viper.Set("format", "text")

	dir := t.TempDir()
	file := writeTempFile(t, dir, "gateway.log", sampleLog())
	csvPath := filepath.Join(dir, "out.csv")
	dbPath := filepath.Join(dir, "db", "runs.db")

	var out, errOut bytes.Buffer
	cmd := newAnalyzeTestCmd(&out, &errOut)
	if err := cmd.Flags().Set("csv", csvPath); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cmd.Flags().Set("sqlite", dbPath); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := runAnalyze(cmd, []string{file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	rows := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(rows) != 3 {
		t.Errorf("expected header plus 2 rows, got %d:\n%s", len(rows), data)
	}

	stderr := errOut.String()
	if !strings.Contains(stderr, "CSV exported: "+csvPath) {
		t.Errorf("expected CSV confirmation on stderr, got:\n%s", stderr)
	}
	if !strings.Contains(stderr, "SQLite exported: "+dbPath) {
		t.Errorf("expected SQLite confirmation on stderr, got:\n%s", stderr)
	}
	if strings.Contains(out.String(), "exported") {
		t.Errorf("confirmations must not go to stdout, got:\n%s", out.String())
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	runs, err := st.Runs()
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 stored run, got %d", len(runs))
	}
	requests, err := st.LoadRequests(runs[0].ID)
	if err != nil {
		t.Fatalf("LoadRequests() error = %v", err)
	}
	if len(requests) != 2 {
		t.Errorf("expected 2 stored requests, got %d", len(requests))
	}
}

func TestAnalyzeErrors(t *testing.T) {
	dir := t.TempDir()
	file := writeTempFile(t, dir, "gateway.log", sampleLog())

	tests := []struct {
		name     string
		path     string
		flags    map[string]string
		wantCode int
		wantErr  string
	}{
		{"missing file", filepath.Join(dir, "absent.log"), nil, ExitInputAbsent, "absent.log"},
		{"bad model regex", file, map[string]string{"model": "["}, ExitFailure, ""},
		{"negative top", file, map[string]string{"top": "-1"}, ExitFailure, "analysis.top"},
		{"watch stdin", "-", map[string]string{"watch": "true"}, ExitFailure, "standard input"},
		{"bad debounce", file, map[string]string{"watch": "true", "debounce": "soon"}, ExitFailure, "debounce"},
		{"unwritable csv", file, map[string]string{"csv": dir}, ExitFailure, "CSV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			viper.Set("format", "text")

			var out, errOut bytes.Buffer
			cmd := newAnalyzeTestCmd(&out, &errOut)
			for name, value := range tt.flags {
				if err := cmd.Flags().Set(name, value); err != nil {
					t.Fatalf("Set(%s) error = %v", name, err)
				}
			}

			err := runAnalyze(cmd, []string{tt.path})
			if err == nil {
				t.Fatal("expected error")
			}
			if code := ExitCode(err); code != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d (err: %v)", code, tt.wantCode, err)
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}
