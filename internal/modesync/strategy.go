package modesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/opencode-ai/themesync/internal/poll"
)

// Outcome is the result of one strategy attempt.
type Outcome int

const (
	// OutcomeUnavailable means the host lacks the capability the strategy needs.
	OutcomeUnavailable Outcome = iota
	// OutcomeNotConverged means the strategy ran but the host did not reach the target.
	OutcomeNotConverged
	// OutcomeConverged means the host now displays the target mode.
	OutcomeConverged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeNotConverged:
		return "not_converged"
	case OutcomeConverged:
		return "converged"
	default:
		return "unknown"
	}
}

// MarshalText renders the outcome name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unavailable":
		*o = OutcomeUnavailable
	case "not_converged":
		*o = OutcomeNotConverged
	case "converged":
		*o = OutcomeConverged
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// Strategy is one layer of the mode cascade.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, target models.Mode) Outcome
}

// waiter polls the host until it shows a mode.
type waiter struct {
	probe    host.ModeProbe
	interval time.Duration
}

func (w waiter) shows(ctx context.Context, target models.Mode) bool {
	mode, err := w.probe.CurrentMode(ctx)
	return err == nil && mode == target
}

func (w waiter) wait(ctx context.Context, target models.Mode, timeout time.Duration) bool {
	return poll.Until(ctx, timeout, w.interval, func(ctx context.Context) bool {
		return w.shows(ctx, target)
	})
}

// DirectCommandStrategy runs the host command dedicated to the target mode.
type DirectCommandStrategy struct {
	runner   host.CommandRunner
	commands map[models.Mode]string
	waiter   waiter
	timeout  time.Duration
}

func (s *DirectCommandStrategy) Name() string { return "direct_command" }

func (s *DirectCommandStrategy) Attempt(ctx context.Context, target models.Mode) Outcome {
	id := s.commands[target]
	if id == "" {
		return OutcomeUnavailable
	}
	if !s.runner.RunCommand(ctx, id) {
		return OutcomeUnavailable
	}
	if s.waiter.wait(ctx, target, s.timeout) {
		return OutcomeConverged
	}
	return OutcomeNotConverged
}

// ToggleCommandStrategy runs the single light/dark toggle older hosts expose.
// It re-reads the mode right before toggling: if the host already shows the
// target, toggling would overshoot back to the original mode.
type ToggleCommandStrategy struct {
	runner  host.CommandRunner
	command string
	waiter  waiter
	timeout time.Duration
}

func (s *ToggleCommandStrategy) Name() string { return "toggle_command" }

func (s *ToggleCommandStrategy) Attempt(ctx context.Context, target models.Mode) Outcome {
	if s.command == "" {
		return OutcomeUnavailable
	}
	current, err := s.waiter.probe.CurrentMode(ctx)
	if err != nil {
		return OutcomeUnavailable
	}
	if current == target {
		return OutcomeConverged
	}
	if !s.runner.RunCommand(ctx, s.command) {
		return OutcomeUnavailable
	}
	if s.waiter.wait(ctx, target, s.timeout) {
		return OutcomeConverged
	}
	return OutcomeNotConverged
}

// AppearanceStrategy calls the host's set-appearance API with each known alias.
type AppearanceStrategy struct {
	setter  host.AppearanceSetter
	aliases map[models.Mode][]string
	waiter  waiter
	timeout time.Duration
}

func (s *AppearanceStrategy) Name() string { return "appearance_api" }

func (s *AppearanceStrategy) Attempt(ctx context.Context, target models.Mode) Outcome {
	names := s.aliases[target]
	if len(names) == 0 {
		return OutcomeUnavailable
	}
	for _, name := range names {
		if err := s.setter.SetAppearance(ctx, name); err != nil {
			if errors.Is(err, host.ErrUnavailable) {
				return OutcomeUnavailable
			}
			continue
		}
		if s.waiter.wait(ctx, target, s.timeout) {
			return OutcomeConverged
		}
	}
	return OutcomeNotConverged
}

// configWrite is a key/value pair written to the host config.
type configWrite struct {
	key   string
	value string
}

// ConfigStrategy writes the host's persisted appearance keys and asks it to
// recompute styles after each write.
type ConfigStrategy struct {
	setter  host.ConfigSetter
	writes  map[models.Mode][]configWrite
	waiter  waiter
	timeout time.Duration
}

func (s *ConfigStrategy) Name() string { return "config_write" }

func (s *ConfigStrategy) Attempt(ctx context.Context, target models.Mode) Outcome {
	writes := s.writes[target]
	if len(writes) == 0 {
		return OutcomeUnavailable
	}
	for _, w := range writes {
		if err := s.setter.SetConfig(ctx, w.key, w.value); err != nil {
			if errors.Is(err, host.ErrUnavailable) {
				return OutcomeUnavailable
			}
			continue
		}
		_ = s.setter.NotifyStyleChange(ctx)
		if s.waiter.wait(ctx, target, s.timeout) {
			return OutcomeConverged
		}
	}
	return OutcomeNotConverged
}

// ForceStrategy flips the host's mode attributes directly. It bypasses the
// host's own state and is the last resort.
type ForceStrategy struct {
	actuator host.ModeActuator
	notifier host.ConfigSetter
	waiter   waiter
	timeout  time.Duration
}

func (s *ForceStrategy) Name() string { return "force_override" }

func (s *ForceStrategy) Attempt(ctx context.Context, target models.Mode) Outcome {
	if err := s.actuator.ForceMode(ctx, target); err != nil {
		if errors.Is(err, host.ErrUnavailable) {
			return OutcomeUnavailable
		}
		return OutcomeNotConverged
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyStyleChange(ctx)
	}
	if s.waiter.wait(ctx, target, s.timeout) {
		return OutcomeConverged
	}
	return OutcomeNotConverged
}
