package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andywolf/twentyq/internal/config"
	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/events"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play one game",
	Long: `Play a single game of 20 Questions on one topic and print the transcript.

Example:
  twentyq play --topic koala
  twentyq play --topic whale --guesser kb --host kb`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
	addGameFlags(playCmd)

	playCmd.Flags().String("topic", "", "Secret topic for the host")
	playCmd.Flags().Bool("json", false, "Print the full result as JSON instead of the transcript")
	_ = playCmd.MarkFlagRequired("topic")
}

// addGameFlags registers the flags shared by play and bench.
func addGameFlags(cmd *cobra.Command) {
	cmd.Flags().String("guesser", "", "Guesser mode (llm, kb, script)")
	cmd.Flags().String("host", "", "Host mode (llm, kb, script)")
	cmd.Flags().String("guesser-script", "", "Guesser script file for --guesser script")
	cmd.Flags().String("host-script", "", "Host answers file for --host script")
	cmd.Flags().String("kb", "", "Knowledge base YAML (default: embedded seed)")
	cmd.Flags().Int("max-turns", 20, "Maximum guesser turns per game")
	cmd.Flags().String("out", "", "Directory for transcripts and summaries (default from config)")
	cmd.Flags().String("db", "", "SQLite results database to record games in")
}

// applyGameFlags copies explicitly set flags over the loaded configuration.
func applyGameFlags(cmd *cobra.Command, cfg *config.Config) {
	str := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	str("guesser", &cfg.Guesser.Mode)
	str("host", &cfg.Host.Mode)
	str("guesser-script", &cfg.Guesser.Script)
	str("host-script", &cfg.Host.Script)
	str("kb", &cfg.KB.Path)
	str("out", &cfg.Output.Dir)
	str("db", &cfg.Store.Path)
	if cmd.Flags().Changed("max-turns") {
		cfg.Game.MaxTurns, _ = cmd.Flags().GetInt("max-turns")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyGameFlags(cmd, cfg)
	if err := cfg.ValidateForPlay(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	topic, _ := cmd.Flags().GetString("topic")

	a := newApp(cfg, logger)
	defer a.Close()

	e, factory, err := a.engine(ctx, cfg.Output.Dir, nil, nil)
	if err != nil {
		return err
	}

	game := engine.Game{Topic: topic}
	if factory != nil {
		if game.Guesser, err = factory(topic, 0); err != nil {
			return err
		}
	}

	res := e.Play(ctx, game)

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printTranscript(cmd.OutOrStdout(), res)
	}

	if res.Incomplete {
		return fmt.Errorf("game %s did not finish: %s", res.GameID, res.Error)
	}
	return nil
}

// printTranscript writes one line per transcript event, then the outcome.
func printTranscript(w io.Writer, res *engine.GameResult) {
	fmt.Fprintf(w, "Game %s: topic %q\n", res.GameID, res.Topic)
	for _, ev := range events.FromResult(res) {
		switch ev.Type {
		case events.EventResult:
			continue
		case events.EventAnswer:
			fmt.Fprintf(w, "        %s\n", ev.Summary)
		default:
			fmt.Fprintf(w, "[%2d] %s\n", ev.Turn+1, ev.Summary)
		}
	}

	outcome := "LOST"
	if res.Success {
		outcome = "WON"
	}
	fmt.Fprintf(w, "%s (%s) after %d/%d turns", outcome, res.Reason, res.TurnsUsed, res.MaxTurns)
	if res.FinalAction != nil {
		fmt.Fprintf(w, ", final guess %q", res.FinalAction.Text())
	}
	fmt.Fprintln(w)
	if res.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", res.Error)
	}
}
