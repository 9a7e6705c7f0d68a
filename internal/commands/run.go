package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"agentic-reconciliation-backend/internal/app"
)

func newRunCommand(e *env) *cobra.Command {
	var memory bool

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run the full reconciliation pipeline over a CSV or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			a, closeApp, err := e.open(cmd.Context(), memory)
			if err != nil {
				return err
			}
			defer closeApp()
			if a.Reconciliation == nil {
				return app.ErrPipelineDisabled
			}

			state, err := a.Reconciliation.Reconcile(cmd.Context(), filepath.Base(args[0]), content)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), state)
		},
	}

	cmd.Flags().BoolVar(&memory, "memory", false, "keep records in memory instead of the database")

	return cmd
}
