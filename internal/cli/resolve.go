package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/swatzat-oss/cs2-dumper/internal/cli/output"
	"github.com/swatzat-oss/cs2-dumper/internal/lookup"
	"github.com/swatzat-oss/cs2-dumper/internal/resolver"
)

func newResolveCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		all    bool
		wait   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <module> <interface>... | resolve <module>!<interface>... | resolve --all",
		Short: "Resolve interface addresses in the target process",
		Example: `  cs2-dumper resolve client.dll Source2Client002 Source2ClientUI001
  cs2-dumper resolve client.dll!Source2Client002 engine2.dll!Source2EngineToClient001
  cs2-dumper resolve --all -o json
  cs2-dumper resolve --wait client.dll Source2Client002`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs(args)
			switch {
			case all && len(args) > 0:
				return fmt.Errorf("--all takes no arguments")
			case !all && err != nil:
				return err
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, opts, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			table := s.facade.Table()
			var rows []resultRow
			if all {
				for _, r := range s.facade.ResolveAll(ctx) {
					rows = append(rows, newResultRow(table, r.Record.Module, r.Record.Interface, r.Resolution, r.Err))
				}
			} else {
				for _, p := range pairs {
					var (
						res resolver.Resolution
						err error
					)
					if wait {
						res, err = s.facade.WaitFor(ctx, p.module, p.iface, s.cfg.Wait.Retry())
					} else {
						res, err = s.facade.Resolve(ctx, p.module, p.iface)
					}
					rows = append(rows, newResultRow(table, p.module, p.iface, res, err))
				}
			}

			if err := output.Write(cmd.OutOrStdout(), format, rows); err != nil {
				return err
			}
			return summarize(rows, s.facade.Stats())
		},
	}
	output.AddFormatFlag(cmd, &format)
	cmd.Flags().BoolVar(&all, "all", false, "Resolve every interface in the table")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for modules that are not loaded yet")
	return cmd
}

type pair struct {
	module string
	iface  string
}

// parsePairs accepts either "module iface..." or "module!iface...".
func parsePairs(args []string) ([]pair, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expected <module> <interface>... or <module>!<interface>...")
	}

	if strings.Contains(args[0], "!") {
		pairs := make([]pair, 0, len(args))
		for _, a := range args {
			module, iface, ok := strings.Cut(a, "!")
			if !ok || module == "" || iface == "" {
				return nil, fmt.Errorf("invalid interface reference %q, expected module!interface", a)
			}
			pairs = append(pairs, pair{module: module, iface: iface})
		}
		return pairs, nil
	}

	if len(args) < 2 {
		return nil, fmt.Errorf("expected at least one interface after module %s", args[0])
	}
	pairs := make([]pair, 0, len(args)-1)
	for _, iface := range args[1:] {
		pairs = append(pairs, pair{module: args[0], iface: iface})
	}
	return pairs, nil
}

// summarize fails the command when any interface could not be resolved.
func summarize(rows []resultRow, stats lookup.Stats) error {
	failed := 0
	for _, r := range rows {
		if r.Status != "ok" && r.Status != "warning" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d interfaces unavailable (%d resolutions)", failed, len(rows), stats.Resolutions)
	}
	return nil
}
