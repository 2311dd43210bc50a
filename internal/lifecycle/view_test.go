package lifecycle

import (
	"testing"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/Ayush-autviz/skin-sub000/internal/provider"
	"github.com/stretchr/testify/assert"
)

func TestViewTogglePanel(t *testing.T) {
	f := newFixture(t)
	s := f.capture(t)

	assert.Equal(t, domain.ViewStateMetrics, s.TogglePanel())
	assert.Equal(t, domain.ViewStateDefault, s.TogglePanel())
}

func TestViewToggleIgnoredWhileZooming(t *testing.T) {
	f := newFixture(t)
	s := f.capture(t)

	s.EnterZoom()
	assert.Equal(t, domain.ViewStateZooming, s.TogglePanel())
}

func TestViewExitZoomAlwaysReturnsToDefault(t *testing.T) {
	f := newFixture(t)
	s := f.capture(t)

	var resets int
	s.SetZoomReset(func() { resets++ })

	// Zoom entered from the expanded panel still exits to default.
	s.TogglePanel()
	s.EnterZoom()
	assert.Equal(t, domain.ViewStateDefault, s.ExitZoom())
	assert.Equal(t, 1, resets)

	// Exiting when not zooming neither moves the view nor fires the reset.
	s.TogglePanel()
	assert.Equal(t, domain.ViewStateMetrics, s.ExitZoom())
	assert.Equal(t, 1, resets)
}

func TestViewDisplayNeutralWhileUnresolved(t *testing.T) {
	f := newFixture(t)
	f.prov.ResultsError = provider.ErrNotReady
	s := f.capture(t)

	waitState(t, s, domain.UIStateAnalyzing)

	// View gestures register but the display stays neutral until the
	// lifecycle resolves.
	s.TogglePanel()
	snap := s.Snapshot()
	assert.Equal(t, domain.ViewStateMetrics, snap.ViewState)
	assert.Equal(t, domain.DisplayNeutral, snap.Display)
}

func TestViewDisplayFollowsViewOnceComplete(t *testing.T) {
	f := newFixture(t)
	s := f.capture(t)

	waitState(t, s, domain.UIStateAnalyzing)
	waitPolls(t, f, 1)
	f.clock.Advance(testConfig().SettleDelay)

	assert.Equal(t, domain.DisplayPhoto, s.Display())
	s.TogglePanel()
	assert.Equal(t, domain.DisplayMetrics, s.Display())
	s.EnterZoom()
	assert.Equal(t, domain.DisplayZoom, s.Display())
	s.ExitZoom()
	assert.Equal(t, domain.DisplayPhoto, s.Display())
}
