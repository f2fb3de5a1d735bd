package style

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	css   string
	loads int
	err   error
}

func (s *countingSource) Load(context.Context) (string, error) {
	s.loads++
	return s.css, s.err
}

func (s *countingSource) String() string { return "counting" }

func testTheme() *models.Theme {
	return &models.Theme{
		ID:   "t1",
		Name: "Night",
		Mode: models.ModeDark,
		Colors: []models.Color{
			{Name: "c1", Value: "#111111"},
			{Name: "accent", Value: "#88c0d0"},
		},
		Assignments: map[models.SemanticVar]string{
			models.VarText:   "var(--c1)",
			models.VarAccent: "var(--accent)",
			models.VarLink:   "rgb(10, 20, 30)",
			models.VarError:  "var(--missing)",
		},
	}
}

func TestGenerate(t *testing.T) {
	css := Generate(testTheme(), models.ModeDark)

	require.Equal(t, `/* themesync: Night (t1) */
body.theme-dark {
  --c1: #111111;
  --accent: #88c0d0;
  --text-normal: #111111;
  --interactive-accent: #88c0d0;
  --link-color: rgb(10, 20, 30);
}
`, css)
	require.NotContains(t, css, "--color-red")
}

func TestGenerateLightSelector(t *testing.T) {
	css := Generate(testTheme(), models.ModeLight)
	require.Contains(t, css, "body.theme-light {")
}

func TestGenerateSkipsMalformedValues(t *testing.T) {
	theme := testTheme()
	theme.Assignments[models.VarCode] = "red; } body { display: none"
	css := Generate(theme, models.ModeDark)
	require.NotContains(t, css, "display")
}

func TestApplyThemeInjectsBaseFirst(t *testing.T) {
	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))
	src := &countingSource{css: "body{}"}
	a := NewApplier(h, h, src)

	require.NoError(t, a.ApplyTheme(context.Background(), testTheme(), nil))
	require.Equal(t, []host.Call{
		{Method: "inject", Arg: BaseStyleID},
		{Method: "inject", Arg: ThemeStyleID},
	}, h.Calls())
	require.True(t, a.IsThemeApplied())
	require.Equal(t, "t1", a.AppliedThemeID())

	base, ok := h.Style(BaseStyleID)
	require.True(t, ok)
	require.Equal(t, "body{}", base)
}

func TestApplyThemeIdempotent(t *testing.T) {
	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeDark))
	a := NewApplier(h, h, EmbeddedSource{})
	ctx := context.Background()

	require.NoError(t, a.ApplyTheme(ctx, testTheme(), nil))
	first, _ := h.Style(ThemeStyleID)
	require.NoError(t, a.ApplyTheme(ctx, testTheme(), nil))
	second, _ := h.Style(ThemeStyleID)

	require.Equal(t, first, second)
	require.Equal(t, first, a.LastCSS())
	require.Equal(t, []string{BaseStyleID, ThemeStyleID}, h.StyleIDs())
}

func TestApplyThemeModeSelection(t *testing.T) {
	ctx := context.Background()
	dark := models.ModeDark

	// Override beats the probed host mode.
	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))
	a := NewApplier(h, h, EmbeddedSource{})
	require.NoError(t, a.ApplyTheme(ctx, testTheme(), &dark))
	require.Contains(t, a.LastCSS(), "body.theme-dark")

	// Without override, the probe decides.
	require.NoError(t, a.ApplyTheme(ctx, testTheme(), nil))
	require.Contains(t, a.LastCSS(), "body.theme-light")

	// Without probe, the theme mode decides.
	a = NewApplier(h, nil, EmbeddedSource{})
	theme := testTheme()
	theme.Mode = models.ModeLight
	require.NoError(t, a.ApplyTheme(ctx, theme, nil))
	require.Contains(t, a.LastCSS(), "body.theme-light")

	// Nothing known: dark.
	theme.Mode = ""
	require.NoError(t, a.ApplyTheme(ctx, theme, nil))
	require.Contains(t, a.LastCSS(), "body.theme-dark")
}

func TestRemoveThemeIdempotent(t *testing.T) {
	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeDark))
	a := NewApplier(h, h, EmbeddedSource{})
	ctx := context.Background()

	require.NoError(t, a.RemoveTheme(ctx))
	require.False(t, a.IsThemeApplied())
	require.Empty(t, h.CallsTo("remove"))

	require.NoError(t, a.ApplyTheme(ctx, testTheme(), nil))
	require.NoError(t, a.RemoveTheme(ctx))
	require.NoError(t, a.RemoveTheme(ctx))
	require.False(t, a.IsThemeApplied())
	require.Len(t, h.CallsTo("remove"), 1)
	require.Equal(t, []string{BaseStyleID}, h.StyleIDs())
	require.Empty(t, a.LastCSS())
}

func TestBaseStylesCache(t *testing.T) {
	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeDark))
	src := &countingSource{css: "body{}"}
	a := NewApplier(h, h, src)
	ctx := context.Background()

	require.NoError(t, a.ApplyBaseStyles(ctx))
	require.NoError(t, a.ApplyBaseStyles(ctx))
	require.NoError(t, a.ApplyTheme(ctx, testTheme(), nil))
	require.Equal(t, 1, src.loads)

	a.ClearCache()
	_, cached := a.BaseCSS()
	require.False(t, cached)

	src.css = "body{color:red}"
	require.NoError(t, a.ApplyBaseStyles(ctx))
	require.Equal(t, 2, src.loads)
	base, _ := h.Style(BaseStyleID)
	require.Equal(t, "body{color:red}", base)
}

func TestBaseStylesLoadError(t *testing.T) {
	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeDark))
	a := NewApplier(h, h, &countingSource{err: errors.New("disk gone")})

	err := a.ApplyTheme(context.Background(), testTheme(), nil)
	require.Error(t, err)
	require.False(t, a.IsThemeApplied())
	require.Empty(t, h.StyleIDs())
}

func TestApplyNilTheme(t *testing.T) {
	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeDark))
	a := NewApplier(h, h, nil)
	require.ErrorIs(t, a.ApplyTheme(context.Background(), nil, nil), ErrNilTheme)
}

func TestFileSourceLiveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.css")
	require.NoError(t, os.WriteFile(path, []byte("a{}"), 0o644))

	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeDark))
	a := NewApplier(h, h, NewSource(path))
	ctx := context.Background()

	require.NoError(t, a.ApplyBaseStyles(ctx))
	require.NoError(t, os.WriteFile(path, []byte("b{}"), 0o644))
	require.NoError(t, a.ApplyBaseStyles(ctx))
	base, _ := h.Style(BaseStyleID)
	require.Equal(t, "a{}", base)

	a.ClearCache()
	require.NoError(t, a.ApplyBaseStyles(ctx))
	base, _ = h.Style(BaseStyleID)
	require.Equal(t, "b{}", base)
}

func TestEmbeddedSource(t *testing.T) {
	css, err := NewSource("").Load(context.Background())
	require.NoError(t, err)
	require.True(t, strings.Contains(css, "--background-primary"))
}
