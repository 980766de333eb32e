package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andywolf/twentyq/internal/config"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the topics in a topics file",
	Long: `Print the numbered topics of a topics file. The numbers are the indices
accepted by "bench --only".

Example:
  twentyq topics --topics topics.yaml`,
	RunE: runTopics,
}

func init() {
	rootCmd.AddCommand(topicsCmd)
	topicsCmd.Flags().String("topics", "", "Topics YAML file (default from config bench.topics)")
}

func runTopics(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("topics")
	if path == "" {
		path = viper.GetString("bench.topics")
	}
	if path == "" {
		return fmt.Errorf("--topics is required")
	}

	topics, err := config.LoadTopics(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, t := range topics {
		if t.Category != "" {
			fmt.Fprintf(out, "%3d  %s (%s)\n", i+1, t.Name, t.Category)
		} else {
			fmt.Fprintf(out, "%3d  %s\n", i+1, t.Name)
		}
	}
	fmt.Fprintf(out, "%d topics\n", len(topics))
	return nil
}
