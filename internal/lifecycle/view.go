package lifecycle

import "github.com/Ayush-autviz/skin-sub000/internal/domain"

// View transitions are user-gesture-driven and orthogonal to the analysis
// lifecycle: no lifecycle transition ever forces a view change. The one
// coupling lives in domain.DisplayFor, which renders a neutral view while
// the lifecycle is unresolved regardless of the view state here.

// TogglePanel flips between the collapsed and expanded detail panel. The
// gesture is ignored while zooming and returns the resulting view state.
func (s *Session) TogglePanel() domain.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.view {
	case domain.ViewStateDefault:
		s.view = domain.ViewStateMetrics
	case domain.ViewStateMetrics:
		s.view = domain.ViewStateDefault
	}
	return s.view
}

// EnterZoom switches to the photo interaction mode with the panel
// minimized. Valid from either panel state.
func (s *Session) EnterZoom() domain.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = domain.ViewStateZooming
	return s.view
}

// ExitZoom leaves the interaction mode. The view always returns to
// default, never to metrics, and the zoom-reset side effect fires so the
// photo view discards its pan/scale state.
func (s *Session) ExitZoom() domain.ViewState {
	s.mu.Lock()
	if s.view != domain.ViewStateZooming {
		view := s.view
		s.mu.Unlock()
		return view
	}
	s.view = domain.ViewStateDefault
	reset := s.zoomReset
	s.mu.Unlock()

	if reset != nil {
		reset()
	}
	return domain.ViewStateDefault
}

// Display returns what the screen renders for the current combination of
// lifecycle and view state.
func (s *Session) Display() domain.DisplayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.DisplayFor(s.ui, s.view)
}
