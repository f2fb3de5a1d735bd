package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	watchMode    bool
	eventsSince  string
	eventsTypes  []string
	eventsEntity string
	eventsLimit  int
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().BoolVarP(&watchMode, "follow", "f", false, "stream new events as JSON lines (requires --jsonl)")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "only events after a duration (1h, 2d) or timestamp")
	eventsCmd.Flags().StringSliceVar(&eventsTypes, "type", nil, "filter by event type (repeatable)")
	eventsCmd.Flags().StringVar(&eventsEntity, "entity", "", "filter by entity type (theme, host, system)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum events to list")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the appearance event log",
	Long: `Show recorded theme and mode events, newest first.

With --follow, new events are streamed as JSON lines until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := MustBeJSONLForWatch(); err != nil {
			return err
		}
		since, err := ParseSince(eventsSince)
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()
		repo := db.NewEventRepository(database)

		config := DefaultStreamConfig()
		config.Since = since
		config.IncludeExisting = since != nil
		for _, t := range eventsTypes {
			config.Types = append(config.Types, models.EventType(strings.TrimSpace(t)))
		}
		if eventsEntity != "" {
			config.EntityTypes = []models.EntityType{models.EntityType(eventsEntity)}
		}

		if watchMode {
			return NewEventStreamer(repo, os.Stdout, config).Stream(ctx)
		}
		return listEvents(ctx, repo, config, eventsLimit)
	},
}

func listEvents(ctx context.Context, repo *db.EventRepository, config StreamConfig, limit int) error {
	q := db.EventQuery{Since: config.Since, Limit: limit}
	if len(config.Types) == 1 {
		q.Type = &config.Types[0]
	}
	if len(config.EntityTypes) == 1 {
		q.EntityType = &config.EntityTypes[0]
	}
	list, err := repo.List(ctx, q)
	if err != nil {
		return err
	}
	list = config.filter(list)

	if IsJSONOutput() || IsJSONLOutput() {
		return WriteOutput(os.Stdout, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stdout, "No events recorded.")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			string(e.Type),
			string(e.EntityType),
			e.EntityID,
			string(e.Payload),
		})
	}
	return writeTable(os.Stdout, []string{"TIME", "TYPE", "ENTITY", "ID", "PAYLOAD"}, rows)
}

// MustBeJSONLForWatch rejects --follow without --jsonl.
func MustBeJSONLForWatch() error {
	if watchMode && !jsonlOutput {
		return &PreflightError{
			Message:  "--follow streams JSON lines",
			Hint:     "Pass --jsonl together with --follow",
			NextStep: "themesync events --follow --jsonl",
		}
	}
	return nil
}

// StreamConfig controls an EventStreamer.
type StreamConfig struct {
	PollInterval time.Duration
	BatchSize    int

	Types       []models.EventType
	EntityTypes []models.EntityType

	// Since is where streaming starts when IncludeExisting is set.
	Since           *time.Time
	IncludeExisting bool
}

// DefaultStreamConfig returns the default streaming settings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
	}
}

func (c StreamConfig) filter(in []*models.Event) []*models.Event {
	if len(c.Types) == 0 && len(c.EntityTypes) == 0 {
		return in
	}
	out := in[:0:0]
	for _, e := range in {
		if len(c.Types) > 0 && !containsValue(c.Types, e.Type) {
			continue
		}
		if len(c.EntityTypes) > 0 && !containsValue(c.EntityTypes, e.EntityType) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func containsValue[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// EventStreamer polls the event log and writes new events as JSON lines.
type EventStreamer struct {
	repo   *db.EventRepository
	out    io.Writer
	config StreamConfig
	logger zerolog.Logger
}

// NewEventStreamer creates a streamer writing to out.
func NewEventStreamer(repo *db.EventRepository, out io.Writer, config StreamConfig) *EventStreamer {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultStreamConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultStreamConfig().BatchSize
	}
	return &EventStreamer{
		repo:   repo,
		out:    out,
		config: config,
		logger: logging.Component("events"),
	}
}

// Stream writes events until ctx is done. Cancellation is not an error.
func (s *EventStreamer) Stream(ctx context.Context) error {
	cursor := time.Now().UTC()
	if s.config.IncludeExisting && s.config.Since != nil {
		cursor = s.config.Since.UTC()
	}
	seen := make(map[string]bool)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		batch, err := s.poll(ctx, cursor)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		for _, e := range batch {
			if seen[e.ID] {
				continue
			}
			if e.Timestamp.After(cursor) {
				cursor = e.Timestamp
				seen = make(map[string]bool)
			}
			seen[e.ID] = true
			if !s.config.matches(e) {
				continue
			}
			if err := s.writeEvent(e); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll returns up to BatchSize events at or after since, oldest first.
func (s *EventStreamer) poll(ctx context.Context, since time.Time) ([]*models.Event, error) {
	s.logger.Trace().Time("since", since).Msg("polling events")
	return s.repo.List(ctx, db.EventQuery{
		Since:     &since,
		Limit:     s.config.BatchSize,
		Ascending: true,
	})
}

func (c StreamConfig) matches(e *models.Event) bool {
	return len(c.filter([]*models.Event{e})) == 1
}

func (s *EventStreamer) writeEvent(e *models.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	data = append(data, '\n')
	_, err = s.out.Write(data)
	return err
}

// ParseSince accepts a duration ago ("30m", "2d") or a timestamp. An empty
// string returns nil.
func ParseSince(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if d, err := parseDurationWithDays(value); err == nil {
		t := time.Now().Add(-d).UTC()
		return &t, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --since %q: use a duration (1h, 2d) or a timestamp", value)
}

// parseDurationWithDays extends time.ParseDuration with a "d" suffix.
func parseDurationWithDays(value string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", value)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(value)
}
