package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opencode-ai/themesync/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	events []*models.Event
}

func (r *fakeRepo) Create(ctx context.Context, event *models.Event) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeRepo) last() *models.Event {
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func TestLogThemeActivated(t *testing.T) {
	repo := &fakeRepo{}

	require.NoError(t, LogThemeActivated(context.Background(), repo, "t1", "t0", models.ModeDark, true))

	event := repo.last()
	require.NotNil(t, event)
	require.Equal(t, models.EventTypeThemeActivated, event.Type)
	require.Equal(t, models.EntityTypeTheme, event.EntityType)
	require.Equal(t, "t1", event.EntityID)

	var payload models.ThemeActivatedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	require.Equal(t, "t0", payload.PreviousID)
	require.True(t, payload.Converged)
}

func TestLogThemeActivatedNone(t *testing.T) {
	repo := &fakeRepo{}
	require.NoError(t, LogThemeActivated(context.Background(), repo, "", "t1", "", false))
	require.Equal(t, "none", repo.last().EntityID)
}

func TestLogModeSync(t *testing.T) {
	repo := &fakeRepo{}
	ctx := context.Background()

	require.NoError(t, LogModeSync(ctx, repo, models.ModeDark, []string{"direct_command"}, 40*time.Millisecond, true))
	require.Equal(t, models.EventTypeModeSynced, repo.last().Type)

	require.NoError(t, LogModeSync(ctx, repo, models.ModeDark, nil, time.Second, false))
	require.Equal(t, models.EventTypeModeSyncFailed, repo.last().Type)

	var payload models.ModeSyncPayload
	require.NoError(t, json.Unmarshal(repo.last().Payload, &payload))
	require.Equal(t, "1s", payload.Duration)
	require.NotNil(t, payload.Layers)
}

func TestLogStylingAndErrors(t *testing.T) {
	repo := &fakeRepo{}
	ctx := context.Background()

	require.NoError(t, LogStyling(ctx, repo, true, "t1"))
	require.Equal(t, models.EventTypeThemeApplied, repo.last().Type)
	require.NoError(t, LogStyling(ctx, repo, false, ""))
	require.Equal(t, models.EventTypeThemeRemoved, repo.last().Type)

	require.NoError(t, LogError(ctx, repo, "apply", nil))
	require.Len(t, repo.events, 2)
	require.NoError(t, LogError(ctx, repo, "apply", errors.New("boom")))
	require.Equal(t, models.EventTypeError, repo.last().Type)
}

func TestRequiresRepository(t *testing.T) {
	require.Error(t, LogModeChanged(context.Background(), nil, models.ModeLight))
	require.Error(t, LogThemeChanged(context.Background(), &fakeRepo{}, models.EventTypeThemeCreated, ""))
}
