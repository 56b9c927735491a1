package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatsTestCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{Use: "stats"}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.Flags().Int("workers", 0, "number of classification workers")
	return cmd
}

func TestStatsText(t *testing.T) {
	viper.Reset()
	viper.Set("format", "text")

	file := writeTempFile(t, t.TempDir(), "gateway.log", sampleLog())

	var out bytes.Buffer
	cmd := newStatsTestCmd(&out)

	if err := runStats(cmd, []string{file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"Total lines:", "Unclassified:", "reduction", "upstream_rejection"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output, got:\n%s", want, got)
		}
	}
}

func TestStatsJSONMultipleFiles(t *testing.T) {
	viper.Reset()
	viper.Set("format", "json")
	// Stats ignore analysis filters.
	viper.Set("analysis.model", "gpt")

	dir := t.TempDir()
	writeTempFile(t, dir, "a.log", sampleLog())
	writeTempFile(t, dir, "b.log", []string{requestLine("claude-haiku", 10), "noise"})

	var out bytes.Buffer
	cmd := newStatsTestCmd(&out)

	if err := runStats(cmd, []string{filepath.Join(dir, "*.log")}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	var stats struct {
		TotalLines   int    `json:"total_lines"`
		Events       int    `json:"events"`
		Unclassified int    `json:"unclassified"`
		FirstEntry   string `json:"first_entry"`
		LastEntry    string `json:"last_entry"`
		Kinds        []struct {
			Kind  string `json:"kind"`
			Count int    `json:"count"`
		} `json:"kinds"`
	}
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out.String())
	}

	if stats.TotalLines != 9 {
		t.Errorf("TotalLines = %d, want 9", stats.TotalLines)
	}
	if stats.Events != 7 {
		t.Errorf("Events = %d, want 7", stats.Events)
	}
	if stats.Unclassified != 2 {
		t.Errorf("Unclassified = %d, want 2", stats.Unclassified)
	}
	if len(stats.Kinds) == 0 || stats.Kinds[0].Kind != "request" || stats.Kinds[0].Count != 3 {
		t.Errorf("unexpected kind counts %+v", stats.Kinds)
	}
	if stats.FirstEntry == "" || stats.LastEntry < stats.FirstEntry {
		t.Errorf("unexpected time range %q..%q", stats.FirstEntry, stats.LastEntry)
	}
}

func TestStatsMissingInput(t *testing.T) {
	viper.Reset()

	var out bytes.Buffer
	cmd := newStatsTestCmd(&out)

	err := runStats(cmd, []string{filepath.Join(t.TempDir(), "*.log")})
	if err == nil {
		t.Fatal("expected error for unmatched pattern")
	}
	if code := ExitCode(err); code != ExitInputAbsent {
		t.Errorf("ExitCode() = %d, want %d", code, ExitInputAbsent)
	}
}
