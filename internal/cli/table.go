package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/swatzat-oss/cs2-dumper/internal/cli/output"
	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
)

func newTableCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Show the offset table in use",
		Long: `Print the metadata of the offset table: where it came from, when it was
generated and its fingerprint. Two tables with the same fingerprint resolve
every interface identically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := openTable(opts)
			if err != nil {
				return err
			}

			meta := table.Meta()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generator:    %s\n", valueOr(meta.Generator, "unknown"))
			if !meta.GeneratedAt.IsZero() {
				fmt.Fprintf(out, "Generated at: %s\n", meta.GeneratedAt.UTC().Format(time.RFC3339))
			}
			if meta.BuildNumber != 0 {
				fmt.Fprintf(out, "Build:        %d\n", meta.BuildNumber)
			}
			fmt.Fprintf(out, "Fingerprint:  %016x\n", table.Fingerprint())
			fmt.Fprintf(out, "Modules:      %d\n", len(table.Modules()))
			fmt.Fprintf(out, "Interfaces:   %d\n", table.Len())
			return nil
		},
	}

	cmd.AddCommand(newTableListCmd(opts))
	cmd.AddCommand(newTableExportCmd(opts))
	return cmd
}

type recordRow struct {
	Module    string `header:"MODULE" json:"module"`
	Interface string `header:"INTERFACE" json:"interface"`
	Offset    string `header:"OFFSET" json:"offset"`
}

func newTableListCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list [module...]",
		Short: "List interfaces in the offset table",
		Example: `  cs2-dumper table list
  cs2-dumper table list client.dll engine2.dll -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := openTable(opts)
			if err != nil {
				return err
			}

			var rows []recordRow
			if len(args) == 0 {
				for _, r := range table.Records() {
					rows = append(rows, recordRow{Module: r.Module, Interface: r.Interface, Offset: r.Offset.String()})
				}
			} else {
				for _, module := range args {
					if !table.HasModule(module) {
						return fmt.Errorf("module %s is not in the offset table", offsets.CanonicalModule(module))
					}
					for _, iface := range table.Interfaces(module) {
						off, _ := table.Lookup(module, iface)
						rows = append(rows, recordRow{Module: offsets.CanonicalModule(module), Interface: iface, Offset: off.String()})
					}
				}
			}
			return output.Write(cmd.OutOrStdout(), format, rows)
		},
	}
	output.AddFormatFlag(cmd, &format)
	return cmd
}

func newTableExportCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the offset table as YAML, JSON or a C++ header",
		Example: `  cs2-dumper table export --format hpp > interfaces.hpp
  cs2-dumper table --table interfaces.hpp export --format yaml --out interfaces.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := openTable(opts)
			if err != nil {
				return err
			}

			if out == "" {
				return table.Write(cmd.OutOrStdout(), format)
			}

			//nolint:gosec // G304: output path is supplied by the operator
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := table.Write(f, format); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml, json, hpp)")
	cmd.Flags().StringVar(&out, "out", "", "Write to a file instead of stdout")
	return cmd
}

func openTable(opts *globalOptions) (*offsets.Table, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	return loadTable(cfg)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
