package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swatzat-oss/cs2-dumper/internal/cli/output"
	"github.com/swatzat-oss/cs2-dumper/internal/modules"
)

type moduleRow struct {
	Module     string `header:"MODULE" json:"module"`
	Base       string `header:"BASE" json:"base,omitempty"`
	Size       string `header:"SIZE" json:"size,omitempty"`
	Generation uint64 `header:"GEN" json:"generation"`
	Path       string `header:"PATH" json:"path,omitempty"`
}

func newModulesCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Locate the table's modules in the target process",
		Long: `List where each module named by the offset table is loaded in the target
process. Modules that are not loaded are shown without a base.

With --all every image mapped in the process is listed, whether or not the
table knows it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			var rows []moduleRow
			if all {
				regions, err := s.source.Modules(ctx)
				if err != nil {
					return fmt.Errorf("failed to list modules of pid %d: %w", s.pid, err)
				}
				for _, r := range regions {
					rows = append(rows, moduleRow{Module: r.Name, Base: hex(r.Base), Size: hex(r.Size), Path: r.Path})
				}
				return output.Write(cmd.OutOrStdout(), format, rows)
			}

			for _, name := range s.facade.Table().Modules() {
				entry, _ := s.tracker.Locate(ctx, name)
				rows = append(rows, newModuleRow(name, entry))
			}
			return output.Write(cmd.OutOrStdout(), format, rows)
		},
	}
	output.AddFormatFlag(cmd, &format)
	cmd.Flags().BoolVar(&all, "all", false, "List every mapped image")
	return cmd
}

func newModuleRow(name string, e modules.Entry) moduleRow {
	row := moduleRow{Module: name, Generation: e.Generation}
	if e.Loaded {
		row.Base = hex(e.Base)
		row.Size = hex(e.Size)
		row.Path = e.Path
	}
	return row
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}
