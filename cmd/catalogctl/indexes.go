package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the MongoDB indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := db.CreateIndexes(cmd.Context()); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "indexes created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}
