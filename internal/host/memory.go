package host

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/opencode-ai/themesync/internal/models"
)

// CommandAction computes the mode after a command runs.
type CommandAction func(current models.Mode) models.Mode

// SetsMode returns an action that switches to m.
func SetsMode(m models.Mode) CommandAction {
	return func(models.Mode) models.Mode { return m }
}

// TogglesMode flips between light and dark.
func TogglesMode(current models.Mode) models.Mode {
	return current.Opposite()
}

// MemoryConfig describes an in-memory host and its quirks.
type MemoryConfig struct {
	// Mode is the initial displayed mode.
	Mode models.Mode

	// Commands registers command ids. Missing ids make RunCommand fail.
	Commands map[string]CommandAction

	// AppearanceNames maps accepted appearance names to modes. Nil means
	// the host has no appearance API.
	AppearanceNames map[string]models.Mode

	// ConfigRules maps "key=value" writes to the mode they select once a
	// style change is notified. Nil means the host has no config API.
	ConfigRules map[string]models.Mode

	// ForceUnavailable hides the mode actuator.
	ForceUnavailable bool

	// ForceIgnored makes forced overrides not stick.
	ForceIgnored bool

	// ReportOnly removes the mode classes and exposes the mode only
	// through the reported dark flag.
	ReportOnly bool
}

// Call records one capability invocation on a Memory host.
type Call struct {
	Method string
	Arg    string
}

// Memory is an in-process Host used for simulation and tests.
type Memory struct {
	cfg MemoryConfig

	mu          sync.Mutex
	mode        models.Mode
	styles      map[string]string
	config      []Call
	calls       []Call
	probes      int
	probeHook   func(probe int)
	subscribers map[int]func(models.Mode)
	nextSub     int
}

var _ Host = (*Memory)(nil)

// NewMemory builds a Memory host from cfg.
func NewMemory(cfg MemoryConfig) *Memory {
	mode := cfg.Mode
	if !mode.Valid() {
		mode = models.ModeLight
	}
	return &Memory{
		cfg:         cfg,
		mode:        mode,
		styles:      make(map[string]string),
		subscribers: make(map[int]func(models.Mode)),
	}
}

// DefaultMemoryConfig models a current host: direct commands, a toggle
// command, the appearance API and config keys all work.
func DefaultMemoryConfig(initial models.Mode) MemoryConfig {
	return MemoryConfig{
		Mode: initial,
		Commands: map[string]CommandAction{
			"theme:use-dark":          SetsMode(models.ModeDark),
			"theme:use-light":         SetsMode(models.ModeLight),
			"theme:toggle-light-dark": TogglesMode,
		},
		AppearanceNames: map[string]models.Mode{
			"obsidian":  models.ModeDark,
			"moonstone": models.ModeLight,
		},
		ConfigRules: map[string]models.Mode{
			"theme=obsidian":  models.ModeDark,
			"theme=moonstone": models.ModeLight,
			"baseTheme=dark":  models.ModeDark,
			"baseTheme=light": models.ModeLight,
		},
	}
}

// Indicators returns the mode state as the host would expose it.
func (m *Memory) Indicators() Indicators {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indicatorsLocked()
}

func (m *Memory) indicatorsLocked() Indicators {
	dark := m.mode == models.ModeDark
	if m.cfg.ReportOnly {
		return Indicators{Classes: []string{"app"}, ReportedDark: &dark}
	}
	class := ClassLight
	if dark {
		class = ClassDark
	}
	return Indicators{Classes: []string{"app", class}}
}

// CurrentMode implements ModeProbe.
func (m *Memory) CurrentMode(ctx context.Context) (models.Mode, error) {
	m.mu.Lock()
	m.probes++
	probe := m.probes
	hook := m.probeHook
	m.mu.Unlock()

	if hook != nil {
		hook(probe)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return DeriveMode(m.indicatorsLocked())
}

// RunCommand implements CommandRunner.
func (m *Memory) RunCommand(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "command", Arg: id})

	action, ok := m.cfg.Commands[id]
	if !ok || action == nil {
		return false
	}
	m.mode = action(m.mode)
	return true
}

// SetAppearance implements AppearanceSetter.
func (m *Memory) SetAppearance(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.AppearanceNames == nil {
		return ErrUnavailable
	}
	m.calls = append(m.calls, Call{Method: "appearance", Arg: name})
	if mode, ok := m.cfg.AppearanceNames[name]; ok {
		m.mode = mode
	}
	return nil
}

// SetConfig implements ConfigSetter.
func (m *Memory) SetConfig(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.ConfigRules == nil {
		return ErrUnavailable
	}
	write := Call{Method: "config", Arg: key + "=" + value}
	m.calls = append(m.calls, write)
	m.config = append(m.config, write)
	return nil
}

// NotifyStyleChange implements ConfigSetter.
func (m *Memory) NotifyStyleChange(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "css-change"})
	for _, write := range m.config {
		if mode, ok := m.cfg.ConfigRules[write.Arg]; ok {
			m.mode = mode
		}
	}
	m.config = nil
	return nil
}

// ForceMode implements ModeActuator.
func (m *Memory) ForceMode(ctx context.Context, mode models.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.ForceUnavailable {
		return ErrUnavailable
	}
	m.calls = append(m.calls, Call{Method: "force", Arg: string(mode)})
	if !m.cfg.ForceIgnored && mode.Valid() {
		m.mode = mode
	}
	return nil
}

// InjectStyle implements StyleSurface.
func (m *Memory) InjectStyle(ctx context.Context, id, css string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "inject", Arg: id})
	m.styles[id] = css
	return nil
}

// RemoveStyle implements StyleSurface.
func (m *Memory) RemoveStyle(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "remove", Arg: id})
	delete(m.styles, id)
	return nil
}

// Style returns an injected style block.
func (m *Memory) Style(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	css, ok := m.styles[id]
	return css, ok
}

// StyleIDs lists injected style ids in sorted order.
func (m *Memory) StyleIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.styles)
}

// Mode returns the displayed mode without counting as a probe.
func (m *Memory) Mode() models.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetExternalMode changes the mode as if the user used the host's own UI
// and notifies subscribers.
func (m *Memory) SetExternalMode(mode models.Mode) {
	m.mu.Lock()
	m.mode = mode
	subs := make([]func(models.Mode), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(mode)
	}
}

// Subscribe registers fn for external mode changes and returns an
// unsubscribe function.
func (m *Memory) Subscribe(fn func(models.Mode)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// SetProbeHook installs fn to run before each CurrentMode probe.
func (m *Memory) SetProbeHook(fn func(probe int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeHook = fn
}

// Calls returns the recorded invocations.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns recorded invocations of method.
func (m *Memory) CallsTo(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ModeActionCount counts calls that could change the mode.
func (m *Memory) ModeActionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		switch c.Method {
		case "command", "appearance", "config", "css-change", "force":
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// String summarizes the host for debug output.
func (m *Memory) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	b.WriteString("memory host mode=")
	b.WriteString(string(m.mode))
	b.WriteString(" styles=")
	b.WriteString(strings.Join(sortedKeys(m.styles), ","))
	return b.String()
}

func sortedKeys(in map[string]string) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
