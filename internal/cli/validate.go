package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wms-platform/roadmap-service/internal/infrastructure/catalog"
)

func newValidateCmd(_ *state) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <catalog.yaml>",
		Short: "Validate every template of a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := catalog.LoadFile(args[0], time.Now().UTC())
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TEMPLATE\tSTEPS\tSLA HOURS\tNAME")
			for _, tmpl := range templates {
				fmt.Fprintf(w, "%s\t%d\t%g\t%s\n", tmpl.TemplateID, len(tmpl.Steps), tmpl.TotalSLAHours(), tmpl.Name)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d templates OK\n", len(templates))
			return nil
		},
	}
}
