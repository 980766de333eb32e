package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andywolf/twentyq/internal/attest"
	"github.com/andywolf/twentyq/internal/config"
	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/metrics"
	"github.com/andywolf/twentyq/internal/runner"
)

// ReportTokenFilename is written next to summary.json by bench --sign.
const ReportTokenFilename = "report.jwt"

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Play every topic in a topics file",
	Long: `Play every topic of a topics file, optionally several times, with bounded
concurrency. Per-game transcripts, per-topic summaries and an overall summary
are written to the output directory.

Example:
  twentyq bench --topics topics.yaml --repeats 3 --concurrency 8
  twentyq bench --topics topics.yaml --only 1-5 --sign`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	addGameFlags(benchCmd)

	benchCmd.Flags().String("topics", "", "Topics YAML file")
	benchCmd.Flags().Int("repeats", 1, "Games per topic")
	benchCmd.Flags().Int("concurrency", 4, "Games played in parallel")
	benchCmd.Flags().StringSlice("only", nil, "Play only these topics by 1-based index (e.g., 1-3,7)")
	benchCmd.Flags().Bool("sign", false, "Write a signed report.jwt next to summary.json")
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyGameFlags(cmd, cfg)
	if cmd.Flags().Changed("topics") {
		cfg.Bench.Topics, _ = cmd.Flags().GetString("topics")
	}
	if cmd.Flags().Changed("repeats") {
		cfg.Bench.Repeats, _ = cmd.Flags().GetInt("repeats")
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Bench.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if err := cfg.ValidateForBench(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	topics, err := config.LoadTopics(cfg.Bench.Topics)
	if err != nil {
		return err
	}
	only, _ := cmd.Flags().GetStringSlice("only")
	if topics, err = SelectTopics(topics, only); err != nil {
		return fmt.Errorf("invalid --only value: %w", err)
	}

	sign, _ := cmd.Flags().GetBool("sign")
	a := newApp(cfg, logger)
	defer a.Close()

	var signer *attest.Signer
	if sign {
		secret, err := a.resolveSecret(ctx, cfg.Attest.Secret)
		if err != nil {
			return fmt.Errorf("failed to resolve attest secret: %w", err)
		}
		if signer, err = attest.NewSigner(cfg.Attest.Issuer, []byte(secret)); err != nil {
			return err
		}
	}

	e, factory, err := a.engine(ctx, cfg.Output.Dir, nil, config.TopicCategories(topics))
	if err != nil {
		return err
	}

	r := runner.New(e, runner.Config{
		Repeats:     cfg.Bench.Repeats,
		Concurrency: cfg.Bench.Concurrency,
		OutDir:      cfg.Output.Dir,
	}, factory, logger)

	report, runErr := r.Run(ctx, config.TopicNames(topics))
	if report == nil {
		return runErr
	}
	printReport(cmd, report)

	if signer != nil && runErr == nil {
		path, err := signReport(signer, report, cfg, e.Config())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed report: %s\n", path)
	}

	if runErr != nil {
		return fmt.Errorf("benchmark interrupted: %w", runErr)
	}
	return nil
}

func signReport(signer *attest.Signer, report *runner.Report, cfg *config.Config, ec engine.Config) (string, error) {
	summaryPath := filepath.Join(cfg.Output.Dir, runner.SummaryFilename)
	data, err := os.ReadFile(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to read summary for signing: %w", err)
	}

	token, err := signer.Sign(report, attest.Meta{
		GuesserModel: ec.GuesserModel,
		HostModel:    ec.HostModel,
		Digest:       attest.Digest(data),
		TTL:          cfg.Attest.TTL,
	})
	if err != nil {
		return "", err
	}

	path := filepath.Join(cfg.Output.Dir, ReportTokenFilename)
	if err := os.WriteFile(path, []byte(token+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func printReport(cmd *cobra.Command, report *runner.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tGAMES\tWINS\tWIN RATE\tMEAN TURNS\tMEAN TURNS (WINS)")

	names := make([]string, 0, len(report.Topics))
	for t := range report.Topics {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		printSummaryRow(w, t, report.Topics[t])
	}
	printSummaryRow(w, "ALL", report.Summary)
	_ = w.Flush()
}

func printSummaryRow(w *tabwriter.Writer, label string, s metrics.Summary) {
	fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%.2f\t%.2f\n",
		label, s.Games, s.Wins, s.WinRate*100, s.MeanTurns, s.MeanTurnsWins)
}
