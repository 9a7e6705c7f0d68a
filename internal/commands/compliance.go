package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newComplianceCommand(e *env) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Scan regulation documents, list upcoming deadlines and optionally answer a query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := e.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeApp()

			state, err := a.Compliance.Run(cmd.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), state)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "regulation question to answer after the scan")

	return cmd
}

func newAskCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a tax regulation question from the knowledge store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := e.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeApp()

			answer, err := a.Regulations.Retrieve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
			return err
		},
	}
}
