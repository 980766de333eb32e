package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andywolf/twentyq/internal/attest"
	"github.com/andywolf/twentyq/internal/runner"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a signed benchmark report",
	Long: `Check the signature of a report.jwt written by "bench --sign" and that the
summary.json beside it is the one that was signed.

Example:
  twentyq verify --report runs/report.jwt`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("report", "", "Signed report token file")
	verifyCmd.Flags().String("summary", "", "Summary file to check (default: summary.json next to the report)")
	_ = verifyCmd.MarkFlagRequired("report")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reportPath, _ := cmd.Flags().GetString("report")
	summaryPath, _ := cmd.Flags().GetString("summary")
	if summaryPath == "" {
		summaryPath = filepath.Join(filepath.Dir(reportPath), runner.SummaryFilename)
	}

	a := newApp(cfg, logger)
	defer a.Close()
	secret, err := a.resolveSecret(context.Background(), cfg.Attest.Secret)
	if err != nil {
		return fmt.Errorf("failed to resolve attest secret: %w", err)
	}
	signer, err := attest.NewSigner(cfg.Attest.Issuer, []byte(secret))
	if err != nil {
		return err
	}

	token, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	claims, err := signer.Verify(strings.TrimSpace(string(token)))
	if err != nil {
		return err
	}

	summary, err := os.ReadFile(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to read summary: %w", err)
	}
	if err := claims.VerifyDigest(summary); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	signed := "unknown"
	if claims.IssuedAt != nil {
		signed = claims.IssuedAt.Time.UTC().Format("2006-01-02 15:04:05Z")
	}
	fmt.Fprintf(out, "Report OK (issuer %s, signed %s)\n", claims.Issuer, signed)
	fmt.Fprintf(out, "Games: %d  Wins: %d  Win rate: %.1f%%  Mean turns: %.2f\n",
		claims.Summary.Games, claims.Summary.Wins, claims.Summary.WinRate*100, claims.Summary.MeanTurns)
	if claims.GuesserModel != "" || claims.HostModel != "" {
		fmt.Fprintf(out, "Guesser: %s  Host: %s\n", claims.GuesserModel, claims.HostModel)
	}
	return nil
}
