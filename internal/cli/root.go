// Package cli implements the cs2-dumper command line.
package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/swatzat-oss/cs2-dumper/internal/constants"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Resolve Source 2 interface addresses from a generated offset table",
		Long: `cs2-dumper turns a table of interface offsets, generated against a build of
the game, into absolute addresses inside a running process.

Each offset is relative to the image base of the module that exports the
interface. Modules are located in the target process, the address is checked
against the module image and optionally probed, and results are cached until
the module reloads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.register(rootCmd)
	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)

	rootCmd.AddCommand(newTableCmd(opts))
	rootCmd.AddCommand(newModulesCmd(opts))
	rootCmd.AddCommand(newResolveCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// normalizeFlag accepts --log_level for --log-level and so on.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
