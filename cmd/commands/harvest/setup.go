package harvest

import (
	"fmt"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/config"
	"nathanbeddoewebdev/cloudharvest/internal/domain"
	core "nathanbeddoewebdev/cloudharvest/internal/harvest"
	"nathanbeddoewebdev/cloudharvest/internal/logger"
	"nathanbeddoewebdev/cloudharvest/internal/providers"
	"nathanbeddoewebdev/cloudharvest/internal/runlog"
	"nathanbeddoewebdev/cloudharvest/internal/services/auth"

	"github.com/spf13/cobra"
)

// DefaultProvider is used when neither --provider nor the default-provider
// config key is set.
const DefaultProvider = "aws"

// Setup holds everything a harvesting command needs.
type Setup struct {
	ProviderName string
	Provider     domain.Provider
	App          *config.Config
	Harvest      core.Config
	RunLog       runlog.Repository
	Log          *logger.Logger
}

// AddFlags registers the provider and tuning flags shared by harvest and serve.
func AddFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "", "Cloud provider to use (overrides default)")
	cmd.Flags().Duration("lookback", 0, "How far back each window reaches (default 60m)")
	cmd.Flags().Duration("period", 0, "Aggregation period of returned datapoints (default 5m)")
	cmd.Flags().Int("concurrency", 0, "Maximum in-flight metric requests (default 4)")
	cmd.Flags().Int("batch-size", 0, "Queries per metric request, at most 500 (default 1)")
	cmd.Flags().Duration("timeout", 0, "Deadline for each metric request (default 30s)")
}

// Resolve loads the config, applies flag overrides and builds the provider.
// A run log that cannot be opened is logged and skipped.
func Resolve(cmd *cobra.Command) (*Setup, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	name, _ := cmd.Flags().GetString("provider")
	if name == "" {
		name = cfg.DefaultProvider
	}
	if name == "" {
		name = DefaultProvider
	}

	provider, err := providers.Get(name, auth.DefaultStore(), providers.Options{Region: cfg.Region})
	if err != nil {
		return nil, err
	}

	hcfg := cfg.Harvest()
	durations := map[string]*time.Duration{
		"lookback": &hcfg.Lookback,
		"period":   &hcfg.Period,
		"timeout":  &hcfg.QueryTimeout,
	}
	for flag, field := range durations {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetDuration(flag)
			if v <= 0 {
				return nil, fmt.Errorf("--%s must be positive", flag)
			}
			*field = v
		}
	}
	// Backends aggregate on whole seconds; a sub-second remainder would be
	// truncated away.
	if hcfg.Period < time.Second || hcfg.Period%time.Second != 0 {
		return nil, fmt.Errorf("--period must be a whole number of seconds, got %s", hcfg.Period)
	}
	ints := map[string]*int{
		"concurrency": &hcfg.Concurrency,
		"batch-size":  &hcfg.BatchSize,
	}
	for flag, field := range ints {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetInt(flag)
			if v < 1 {
				return nil, fmt.Errorf("--%s must be at least 1", flag)
			}
			*field = v
		}
	}
	if hcfg.BatchSize > core.MaxBatchSize {
		return nil, fmt.Errorf("--batch-size must be at most %d", core.MaxBatchSize)
	}

	log := logger.Get().WithFields("provider", name)

	var repo runlog.Repository
	if r, err := runlog.Open(); err != nil {
		log.WithError(err).Warn("run log unavailable, passes will not be recorded")
	} else {
		repo = r
	}

	return &Setup{
		ProviderName: name,
		Provider:     provider,
		App:          cfg,
		Harvest:      hcfg,
		RunLog:       repo,
		Log:          log,
	}, nil
}

// Harvester builds a harvester writing to sink. The run log, when open, is
// added to the observers.
func (s *Setup) Harvester(sink core.Sink, observers ...core.Observer) *core.Harvester {
	if s.RunLog != nil {
		observers = append(observers, runlog.NewObserver(s.RunLog, s.ProviderName, s.Log))
	}
	opts := []core.Option{core.WithLogger(s.Log)}
	if sink != nil {
		opts = append(opts, core.WithSink(sink))
	}
	if len(observers) > 0 {
		opts = append(opts, core.WithObserver(core.Observers(observers)))
	}
	return core.New(s.Provider, s.Provider, s.Harvest, opts...)
}

// Close releases the run log.
func (s *Setup) Close() {
	if s.RunLog != nil {
		_ = s.RunLog.Close()
	}
}
