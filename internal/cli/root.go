package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/andywolf/twentyq/internal/config"
	"github.com/andywolf/twentyq/internal/routing"
	"github.com/andywolf/twentyq/internal/version"
)

var (
	cfgFile string
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "twentyq",
	Short: "twentyq - 20 Questions self-play between two language-model agents",
	Long: `twentyq runs games of 20 Questions between a Guesser and a Host.

The Guesser asks yes/no questions and eventually names the secret topic; the
Host answers under strict IS-A semantics. Either side can be a language model,
an offline knowledge base, or a script. Results are written as JSONL
transcripts, optionally stored in SQLite, and summarized as win rates.

Example:
  twentyq play --topic whale --guesser kb --host kb
  twentyq bench --topics topics.yaml --repeats 3 --concurrency 4`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetBool("verbose"))
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .twentyq.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().String("guesser-model", "", "Guesser model (format: provider:model)")
	rootCmd.PersistentFlags().String("host-model", "", "Host model (format: provider:model)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".twentyq")
	}

	viper.SetEnvPrefix("TWENTYQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// loadConfig loads the configuration and applies the persistent model flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for flag, role := range map[string]string{"guesser-model": routing.RoleGuesser, "host-model": routing.RoleHost} {
		spec, _ := cmd.Flags().GetString(flag)
		if spec == "" {
			continue
		}
		if cfg.Routing.Overrides == nil {
			cfg.Routing.Overrides = make(map[string]routing.ModelConfig)
		}
		cfg.Routing.Overrides[role] = routing.ParseModelSpec(spec)
	}
	return cfg, nil
}
