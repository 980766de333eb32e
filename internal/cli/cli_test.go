package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/events"
	"github.com/andywolf/twentyq/internal/routing"
	"github.com/andywolf/twentyq/internal/runner"
	"github.com/andywolf/twentyq/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

// execute runs the root command with args and returns its stdout. Flag and
// viper state is reset first since both are package globals.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "OPENAI_BASE_URL", "GEMINI_BASE_URL"} {
		t.Setenv(k, "")
	}
	viper.Reset()
	cfgFile = ""
	resetFlags(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPlay_Offline(t *testing.T) {
	out := t.TempDir()
	stdout, err := execute(t, "play", "--topic", "whale", "--guesser", "kb", "--host", "kb", "--out", out)
	require.NoError(t, err)

	assert.Contains(t, stdout, `topic "whale"`)
	assert.Contains(t, stdout, "Q: ")
	assert.Contains(t, stdout, "WON (win)")

	files, err := filepath.Glob(filepath.Join(out, "whale", "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	evs, err := events.ReadEvents(files[0])
	require.NoError(t, err)
	assert.Equal(t, events.EventResult, evs[len(evs)-1].Type)
}

func TestPlay_JSON(t *testing.T) {
	stdout, err := execute(t, "play", "--topic", "eagle", "--guesser", "kb", "--host", "kb", "--out", t.TempDir(), "--json")
	require.NoError(t, err)

	var res engine.GameResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "kb:entropy", res.GuesserModel)
	assert.Equal(t, "kb", res.HostModel)
}

func TestPlay_ScriptedBothSides(t *testing.T) {
	dir := t.TempDir()
	gs := writeFile(t, filepath.Join(dir, "guesser.yaml"), `
assess:
  - '{"candidate": "dog", "confidence": 0.1, "consistent": true, "common": true}'
  - '{"candidate": "koala", "confidence": 0.95, "consistent": true, "common": true}'
ask:
  - '{"type": "ask", "question_text": "Is it an animal?"}'
guess:
  - '{"type": "guess", "guess_text": "koala", "confidence": 0.95}'
`)
	hs := writeFile(t, filepath.Join(dir, "host.yaml"), `"Is it an animal?": yes`)

	stdout, err := execute(t, "play", "--topic", "koala", "--out", dir,
		"--guesser", "script", "--guesser-script", gs,
		"--host", "script", "--host-script", hs)
	require.NoError(t, err)
	assert.Contains(t, stdout, "A: yes")
	assert.Contains(t, stdout, "WON (win) after 2/20 turns")
}

func TestPlay_RequiresAPIKeyForModels(t *testing.T) {
	_, err := execute(t, "play", "--topic", "koala", "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestPlay_RequiresTopic(t *testing.T) {
	_, err := execute(t, "play", "--guesser", "kb", "--host", "kb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic")
}

func TestBenchSignAndVerify(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "runs")
	db := filepath.Join(dir, "results.db")
	topics := writeFile(t, filepath.Join(dir, "topics.yaml"), "topics: [whale, apple, {name: eagle, category: bird}, laptop]")
	t.Setenv("TWENTYQ_ATTEST_SECRET", testSecret)

	stdout, err := execute(t, "bench", "--topics", topics, "--only", "1-3",
		"--guesser", "kb", "--host", "kb", "--repeats", "2", "--concurrency", "3",
		"--out", out, "--db", db, "--sign")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ALL")
	assert.Contains(t, stdout, "100.0%")
	assert.Contains(t, stdout, "Signed report")

	report, err := runner.ReadReport(filepath.Join(out, runner.SummaryFilename))
	require.NoError(t, err)
	assert.Equal(t, 6, report.Summary.Games)
	assert.NotContains(t, report.Topics, "laptop")

	st, err := store.Open(context.Background(), db, nil)
	require.NoError(t, err)
	games, err := st.ListGames(context.Background(), store.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, games, 6)
	require.NoError(t, st.Close())

	stdout, err = execute(t, "verify", "--report", filepath.Join(out, ReportTokenFilename))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Report OK")
	assert.Contains(t, stdout, "Games: 6")

	// Editing the summary after signing breaks verification.
	summary := filepath.Join(out, runner.SummaryFilename)
	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	writeFile(t, summary, string(data)+" ")
	_, err = execute(t, "verify", "--report", filepath.Join(out, ReportTokenFilename))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")
}

func TestBench_SignRequiresSecret(t *testing.T) {
	dir := t.TempDir()
	topics := writeFile(t, filepath.Join(dir, "topics.yaml"), "- whale\n")
	t.Setenv("TWENTYQ_ATTEST_SECRET", "")

	_, err := execute(t, "bench", "--topics", topics, "--guesser", "kb", "--host", "kb", "--out", dir, "--sign")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing secret")
}

func TestBench_InvalidOnly(t *testing.T) {
	dir := t.TempDir()
	topics := writeFile(t, filepath.Join(dir, "topics.yaml"), "- whale\n")

	_, err := execute(t, "bench", "--topics", topics, "--guesser", "kb", "--host", "kb", "--out", dir, "--only", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestTopicsCommand(t *testing.T) {
	topics := writeFile(t, filepath.Join(t.TempDir(), "topics.yaml"), "topics: [koala, {name: obsidian, category: mineral}]")

	stdout, err := execute(t, "topics", "--topics", topics)
	require.NoError(t, err)
	assert.Contains(t, stdout, "  1  koala\n")
	assert.Contains(t, stdout, "  2  obsidian (mineral)\n")
	assert.Contains(t, stdout, "2 topics")

	_, err = execute(t, "topics")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "twentyq "))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, filepath.Join(dir, "twentyq.yaml"), `
game:
  max_turns: 1
guesser:
  mode: kb
host:
  mode: kb
`)
	stdout, err := execute(t, "--config", cfg, "play", "--topic", "whale", "--out", dir, "--json")
	require.NoError(t, err)

	var res engine.GameResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, 1, res.MaxTurns)
	assert.Equal(t, "kb:entropy", res.GuesserModel)
}

func TestLoadConfig_ModelFlags(t *testing.T) {
	viper.Reset()
	cmd := &cobra.Command{}
	cmd.Flags().String("guesser-model", "", "")
	cmd.Flags().String("host-model", "", "")
	require.NoError(t, cmd.Flags().Set("guesser-model", "gemini:gemini-2.0-flash"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	r := routing.NewRouter(&cfg.Routing)
	assert.Equal(t, "gemini:gemini-2.0-flash", r.ModelForRole(routing.RoleGuesser).String())
	assert.Equal(t, cfg.Routing.Default, r.ModelForRole(routing.RoleHost))
}
