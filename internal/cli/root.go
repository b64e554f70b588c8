package cli

import (
	"github.com/BartekS5/fieldmapper/pkg/logger"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldmapper",
		Short: "fieldmapper - map product file columns onto a target schema",
		Long: `fieldmapper reads a CSV or XLSX product file, runs several matching strategies
concurrently over its columns and prints the chosen target field for each one.
Confident mappings are remembered in a learning cache for later runs.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
	}

	rootCmd.AddCommand(NewMapCmd(), NewCacheCmd(), NewSchemaCmd())

	return rootCmd
}
