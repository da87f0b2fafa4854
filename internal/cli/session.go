package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/swatzat-oss/cs2-dumper/internal/config"
	rerrors "github.com/swatzat-oss/cs2-dumper/internal/errors"
	"github.com/swatzat-oss/cs2-dumper/internal/guard"
	"github.com/swatzat-oss/cs2-dumper/internal/logging"
	"github.com/swatzat-oss/cs2-dumper/internal/lookup"
	"github.com/swatzat-oss/cs2-dumper/internal/modules"
	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
	"github.com/swatzat-oss/cs2-dumper/internal/resolver"
	"github.com/swatzat-oss/cs2-dumper/internal/sys/proc"
)

// globalOptions are the persistent flags. Set flags override the config
// file and environment.
type globalOptions struct {
	configPath string
	tablePath  string
	process    string
	pid        int
	logLevel   string
	noProbe    bool
}

func (o *globalOptions) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "Config file (default ~/.cs2-dumper/config.yaml)")
	f.StringVarP(&o.tablePath, "table", "t", "", "Offset table (.yaml, .json or .hpp); default is the embedded table")
	f.StringVarP(&o.process, "process", "p", "", "Target process name")
	f.IntVar(&o.pid, "pid", 0, "Target process id (overrides --process)")
	f.StringVar(&o.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	f.BoolVar(&o.noProbe, "no-probe", false, "Only bounds-check resolved addresses")
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	loader := config.NewLoader()

	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = loader.LoadFile(o.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.tablePath != "" {
		cfg.Table.Path = o.tablePath
	}
	if o.process != "" {
		cfg.Target.Process = o.process
		cfg.Target.PID = 0
	}
	if o.pid != 0 {
		cfg.Target.PID = o.pid
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.noProbe {
		cfg.Guard.Probe = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
}

func loadTable(cfg *config.Config) (*offsets.Table, error) {
	if cfg.Table.Path == "" {
		return offsets.Embedded()
	}
	return offsets.LoadFile(cfg.Table.Path)
}

// session is everything a process-facing command needs.
type session struct {
	cfg     *config.Config
	logger  zerolog.Logger
	pid     int
	source  modules.Source
	tracker *modules.Tracker
	facade  *lookup.Facade
	prober  guard.ProcessProber
}

func openSession(ctx context.Context, opts *globalOptions, reg prometheus.Registerer) (*session, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	table, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}

	pid := cfg.Target.PID
	if pid == 0 {
		pid, err = proc.FindPidByName(ctx, cfg.Target.Process)
		if err != nil {
			return nil, fmt.Errorf("failed to look up process %q: %w", cfg.Target.Process, err)
		}
		if pid == 0 {
			return nil, fmt.Errorf("process %q is not running", cfg.Target.Process)
		}
	}
	logger = logger.With().Int("pid", pid).Logger()
	if exe, err := (proc.FS{}).ExePath(pid); err == nil {
		logger.Debug().Str("exe", exe).Msg("Attached to target process")
	}

	source, err := modules.NewProcessSource(pid)
	if err != nil {
		return nil, err
	}
	tracker := modules.NewTracker(source, modules.Options{PreferredPaths: cfg.Target.PreferredPaths}, logger)

	s := &session{
		cfg:     cfg,
		logger:  logger,
		pid:     pid,
		source:  source,
		tracker: tracker,
	}

	guardOpts := guard.Options{RequireExecutable: cfg.Guard.RequireExecutable}
	if guardOpts.Expectations, err = cfg.Guard.Expectations(); err != nil {
		return nil, err
	}
	if cfg.Guard.Probe {
		if s.prober, err = guard.NewProcessProber(pid); err != nil {
			return nil, err
		}
		guardOpts.Prober = s.prober
	}

	s.facade, err = lookup.New(lookup.Options{
		Tables:          offsets.NewStore(table),
		Tracker:         tracker,
		Guard:           guard.New(guardOpts, logger),
		AcceptSuspect:   !cfg.Guard.Strict,
		RevalidateOnHit: cfg.Watch.Revalidate,
		Registerer:      reg,
	}, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the memory prober.
func (s *session) Close() {
	if s.prober != nil {
		rerrors.DeferClose(s.logger, s.prober, "Failed to close memory prober")
	}
}

// resultRow is one resolved interface as printed by resolve and watch.
type resultRow struct {
	Module     string `header:"MODULE" json:"module"`
	Interface  string `header:"INTERFACE" json:"interface"`
	Offset     string `header:"OFFSET" json:"offset"`
	Address    string `header:"ADDRESS" json:"address,omitempty"`
	Generation uint64 `header:"GEN" json:"generation,omitempty"`
	Status     string `header:"STATUS" json:"status"`
	Error      string `json:"error,omitempty"`
}

func newResultRow(table *offsets.Table, module, iface string, res resolver.Resolution, err error) resultRow {
	row := resultRow{
		Module:    offsets.CanonicalModule(module),
		Interface: iface,
		Status:    "ok",
	}
	if off, ok := table.Lookup(module, iface); ok {
		row.Offset = off.String()
	}
	if res.Address != 0 {
		row.Address = fmt.Sprintf("%#x", res.Address)
		row.Generation = res.Generation
	}
	if err != nil {
		row.Error = err.Error()
		switch kind := rerrors.KindOf(err); kind {
		case 0:
			row.Status = "error"
		case rerrors.SuspectStale:
			row.Status = "warning"
			if res.Address == 0 {
				row.Status = kind.String()
			}
		default:
			row.Status = kind.String()
		}
	}
	return row
}
