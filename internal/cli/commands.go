// Package cli handles the command-line interface logic
// using the Cobra library.
package cli

import (
	"github.com/spf13/cobra"
)

type MapOptions struct {
	File       string
	SchemaFile string
	SessionID  string
	Preview    int
}

func NewMapCmd() *cobra.Command {
	opts := &MapOptions{}

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map the columns of a CSV or XLSX file onto the target schema",
		RunE: func(c *cobra.Command, args []string) error {
			return runMap(c.Context(), opts, c.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Path to the CSV or XLSX file")
	cmd.Flags().StringVarP(&opts.SchemaFile, "schema", "s", "", "Target schema file (.yaml or .json), default product schema if empty")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Session ID for cost tracking, generated if empty")
	cmd.Flags().IntVar(&opts.Preview, "preview", 0, "Also print this many sample rows renamed to target fields")
	cmd.MarkFlagRequired("file")

	return cmd
}

func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the learning cache",
	}

	var limit int
	top := &cobra.Command{
		Use:   "top",
		Short: "List the most used cache entries",
		RunE: func(c *cobra.Command, args []string) error {
			return runCacheTop(c.Context(), limit, c.OutOrStdout())
		},
	}
	top.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")

	cmd.AddCommand(top)
	return cmd
}

func NewSchemaCmd() *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the active target schema",
		RunE: func(c *cobra.Command, args []string) error {
			return runSchema(schemaFile, c.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&schemaFile, "schema", "s", "", "Target schema file (.yaml or .json)")

	return cmd
}
