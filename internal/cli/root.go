// Package cli implements roadmapctl, the operator tool for template catalogs,
// offline generation dry runs and ledger statistics.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wms-platform/roadmap-service/internal/config"
)

var (
	appVersion = "dev"
	appCommit  = "none"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit string) {
	appVersion = version
	appCommit = commit
}

// state is shared by the subcommands of one root command
type state struct {
	v   *viper.Viper
	cfg *config.Config
}

// NewRootCmd builds the roadmapctl command tree.
func NewRootCmd() *cobra.Command {
	st := &state{v: viper.New()}

	root := &cobra.Command{
		Use:   "roadmapctl",
		Short: "Operate roadmap templates and task generation",
		Long: `roadmapctl validates roadmap template catalogs, dry-runs task generation
against an in-memory store and reads generation statistics from a running
roadmap-service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.v.GetString("config"))
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "path to a roadmap.yaml config file")
	_ = st.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(
		newValidateCmd(st),
		newPlanCmd(st),
		newStatsCmd(st),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "roadmapctl %s\ncommit: %s\n", appVersion, appCommit)
			},
		},
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
