// Package modesync drives a host to a requested light or dark mode.
//
// Hosts expose mode switching through several entry points of varying
// reliability. The Synchronizer tries them in a fixed order, stopping as
// soon as the host reports the target mode, and falls back to forcing the
// mode attributes directly when nothing else works.
package modesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/themesync/internal/config"
	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/rs/zerolog"
)

// Options controls cascade timing and host command names.
type Options struct {
	CommandTimeout time.Duration
	APITimeout     time.Duration
	ForceTimeout   time.Duration
	PollInterval   time.Duration

	DarkCommand   string
	LightCommand  string
	ToggleCommand string

	DarkAliases  []string
	LightAliases []string
}

// DefaultOptions mirrors the default sync configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig().Sync)
}

// OptionsFromConfig converts the sync config section.
func OptionsFromConfig(cfg config.SyncConfig) Options {
	return Options{
		CommandTimeout: cfg.CommandTimeout,
		APITimeout:     cfg.APITimeout,
		ForceTimeout:   cfg.ForceTimeout,
		PollInterval:   cfg.PollInterval,
		DarkCommand:    cfg.Commands.Dark,
		LightCommand:   cfg.Commands.Light,
		ToggleCommand:  cfg.Commands.Toggle,
		DarkAliases:    append([]string(nil), cfg.DarkAliases...),
		LightAliases:   append([]string(nil), cfg.LightAliases...),
	}
}

// Attempt records one strategy invocation.
type Attempt struct {
	Strategy string        `json:"strategy"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// Report describes the last EnsureMode call.
type Report struct {
	Target    models.Mode   `json:"target"`
	Initial   models.Mode   `json:"initial,omitempty"`
	Attempts  []Attempt     `json:"attempts"`
	Reapplied bool          `json:"reapplied"`
	Converged bool          `json:"converged"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Layers returns the names of the strategies that ran.
func (r Report) Layers() []string {
	out := make([]string, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		out = append(out, a.Strategy)
	}
	return out
}

// Synchronizer runs the mode cascade against one host.
type Synchronizer struct {
	probe      host.ModeProbe
	strategies []Strategy
	final      Strategy
	logger     zerolog.Logger

	mu   sync.Mutex
	last *Report
}

// New builds the standard cascade for h. Capabilities h does not implement
// are left out of the cascade; capabilities it implements but reports as
// unavailable are skipped at run time.
func New(h host.ModeProbe, opts Options) *Synchronizer {
	opts = withDefaults(opts)
	w := waiter{probe: h, interval: opts.PollInterval}

	var strategies []Strategy
	var final Strategy

	if runner, ok := h.(host.CommandRunner); ok {
		strategies = append(strategies,
			&DirectCommandStrategy{
				runner: runner,
				commands: map[models.Mode]string{
					models.ModeDark:  opts.DarkCommand,
					models.ModeLight: opts.LightCommand,
				},
				waiter:  w,
				timeout: opts.CommandTimeout,
			},
			&ToggleCommandStrategy{
				runner:  runner,
				command: opts.ToggleCommand,
				waiter:  w,
				timeout: opts.CommandTimeout,
			},
		)
	}

	if setter, ok := h.(host.AppearanceSetter); ok {
		strategies = append(strategies, &AppearanceStrategy{
			setter: setter,
			aliases: map[models.Mode][]string{
				models.ModeDark:  opts.DarkAliases,
				models.ModeLight: opts.LightAliases,
			},
			waiter:  w,
			timeout: opts.APITimeout,
		})
	}

	notifier, hasConfig := h.(host.ConfigSetter)
	if hasConfig {
		strategies = append(strategies, &ConfigStrategy{
			setter: notifier,
			writes: map[models.Mode][]configWrite{
				models.ModeDark:  configWrites(models.ModeDark, opts.DarkAliases),
				models.ModeLight: configWrites(models.ModeLight, opts.LightAliases),
			},
			waiter:  w,
			timeout: opts.APITimeout,
		})
	}

	if actuator, ok := h.(host.ModeActuator); ok {
		force := &ForceStrategy{
			actuator: actuator,
			waiter:   w,
			timeout:  opts.ForceTimeout,
		}
		if hasConfig {
			force.notifier = notifier
		}
		strategies = append(strategies, force)
		final = force
	}

	return NewWithStrategies(h, strategies, final)
}

// NewWithStrategies builds a synchronizer with an explicit cascade. final, if
// non-nil, is re-applied once when the cascade ends without convergence.
func NewWithStrategies(probe host.ModeProbe, strategies []Strategy, final Strategy) *Synchronizer {
	return &Synchronizer{
		probe:      probe,
		strategies: strategies,
		final:      final,
		logger:     logging.Component("modesync"),
	}
}

// Strategies returns the cascade layer names in order.
func (s *Synchronizer) Strategies() []string {
	out := make([]string, 0, len(s.strategies))
	for _, st := range s.strategies {
		out = append(out, st.Name())
	}
	return out
}

// CurrentMode probes the host.
func (s *Synchronizer) CurrentMode(ctx context.Context) (models.Mode, error) {
	return s.probe.CurrentMode(ctx)
}

// EnsureMode drives the host to target and reports whether it displays the
// target afterwards. No host action is taken when the host already shows the
// target. The mode is re-read before every layer so a change made elsewhere
// mid-cascade ends it instead of being undone.
func (s *Synchronizer) EnsureMode(ctx context.Context, target models.Mode) bool {
	report := Report{Target: target, StartedAt: time.Now()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		s.record(report)
	}()

	if !target.Valid() {
		s.logger.Warn().Str("target", string(target)).Msg("ignoring invalid target mode")
		return false
	}

	current, err := s.probe.CurrentMode(ctx)
	if err == nil {
		report.Initial = current
		if current == target {
			report.Converged = true
			return true
		}
	}

	converged := false
	for i, strategy := range s.strategies {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && s.shows(ctx, target) {
			converged = true
			break
		}
		outcome := s.attempt(ctx, strategy, target, &report)
		if outcome == OutcomeConverged {
			converged = true
			break
		}
	}

	if !converged {
		converged = s.shows(ctx, target)
	}

	if !converged && s.final != nil && ctx.Err() == nil {
		report.Reapplied = true
		converged = s.attempt(ctx, s.final, target, &report) == OutcomeConverged || s.shows(ctx, target)
	}

	report.Converged = converged
	event := s.logger.Debug()
	if !converged {
		event = s.logger.Warn()
	}
	event.
		Str("target", string(target)).
		Str("initial", string(report.Initial)).
		Strs("layers", report.Layers()).
		Bool("converged", converged).
		Msg("mode sync finished")

	return converged
}

// LastReport returns the report of the most recent EnsureMode call.
func (s *Synchronizer) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Report{}, false
	}
	out := *s.last
	out.Attempts = append([]Attempt(nil), s.last.Attempts...)
	return out, true
}

func (s *Synchronizer) record(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
}

func (s *Synchronizer) shows(ctx context.Context, target models.Mode) bool {
	mode, err := s.probe.CurrentMode(ctx)
	return err == nil && mode == target
}

// attempt runs one strategy, converting a panic into a failed layer.
func (s *Synchronizer) attempt(ctx context.Context, strategy Strategy, target models.Mode, report *Report) (outcome Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("strategy", strategy.Name()).
				Err(fmt.Errorf("strategy panic: %v", r)).
				Msg("mode strategy failed")
			outcome = OutcomeNotConverged
		}
		report.Attempts = append(report.Attempts, Attempt{
			Strategy: strategy.Name(),
			Outcome:  outcome,
			Duration: time.Since(start),
		})
		s.logger.Trace().
			Str("strategy", strategy.Name()).
			Str("outcome", outcome.String()).
			Msg("mode strategy attempted")
	}()
	return strategy.Attempt(ctx, target)
}

func configWrites(mode models.Mode, aliases []string) []configWrite {
	var writes []configWrite
	if len(aliases) > 0 {
		writes = append(writes, configWrite{key: "theme", value: aliases[0]})
	}
	return append(writes, configWrite{key: "baseTheme", value: string(mode)})
}

func withDefaults(opts Options) Options {
	def := OptionsFromConfig(config.DefaultConfig().Sync)
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = def.CommandTimeout
	}
	if opts.APITimeout <= 0 {
		opts.APITimeout = def.APITimeout
	}
	if opts.ForceTimeout <= 0 {
		opts.ForceTimeout = def.ForceTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	return opts
}
