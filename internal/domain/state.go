// Package domain contains core business types and interfaces.
//
// This file defines the two orthogonal state enums of a photo session:
// UIState, the lifecycle of the analysis result, and ViewState, the
// user-driven presentation mode. A lookup table composes the two into the
// display mode observers render.
package domain

import "fmt"

// =============================================================================
// UIState: Analysis Lifecycle
// =============================================================================

// UIState is the lifecycle state of one photo's analysis result. It only
// advances forward; the three resolved states are terminal.
type UIState string

const (
	// UIStateLoading indicates the photo is being submitted to the provider.
	UIStateLoading UIState = "loading"

	// UIStateAnalyzing indicates submission succeeded and polling is active.
	UIStateAnalyzing UIState = "analyzing"

	// UIStateComplete indicates metrics arrived with acceptable quality.
	UIStateComplete UIState = "complete"

	// UIStateNoResults indicates submission failure, provider error, or timeout.
	UIStateNoResults UIState = "no_results"

	// UIStateLowQuality indicates metrics arrived but the photo is unusable.
	UIStateLowQuality UIState = "low_quality"
)

// String returns the string representation of the state.
func (s UIState) String() string {
	return string(s)
}

// IsValid returns true if the state is a recognized value.
func (s UIState) IsValid() bool {
	switch s {
	case UIStateLoading, UIStateAnalyzing, UIStateComplete,
		UIStateNoResults, UIStateLowQuality:
		return true
	}
	return false
}

// Terminal returns true for states that admit no further automatic
// transition within a session.
func (s UIState) Terminal() bool {
	switch s {
	case UIStateComplete, UIStateNoResults, UIStateLowQuality:
		return true
	}
	return false
}

// CanTransitionTo checks whether the lifecycle may advance to the target
// state. The graph is strictly forward:
//
//	loading -> analyzing | complete | no_results | low_quality
//	analyzing -> complete | no_results | low_quality
//
// Terminal states admit nothing.
func (s UIState) CanTransitionTo(target UIState) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case UIStateLoading:
		return target == UIStateAnalyzing || target.Terminal()
	case UIStateAnalyzing:
		return target.Terminal()
	}
	return false
}

// Transition validates and returns the target state, or an error if the
// move is not in the graph. The caller keeps its current state on error.
func (s UIState) Transition(target UIState) (UIState, error) {
	if !target.IsValid() {
		return s, fmt.Errorf("invalid ui state: %s", target)
	}
	if !s.CanTransitionTo(target) {
		return s, fmt.Errorf("cannot transition from %s to %s", s, target)
	}
	return target, nil
}

// =============================================================================
// ViewState: Presentation Mode
// =============================================================================

// ViewState is the user-gesture-driven presentation mode of the photo and
// its detail panel. It is orthogonal to UIState: no lifecycle transition may
// force a view change.
type ViewState string

const (
	// ViewStateDefault shows the photo with the detail panel collapsed.
	ViewStateDefault ViewState = "default"

	// ViewStateMetrics shows the expanded detail panel.
	ViewStateMetrics ViewState = "metrics"

	// ViewStateZooming shows the photo interaction mode with the panel minimized.
	ViewStateZooming ViewState = "zooming"
)

// String returns the string representation of the state.
func (v ViewState) String() string {
	return string(v)
}

// IsValid returns true if the state is a recognized value.
func (v ViewState) IsValid() bool {
	switch v {
	case ViewStateDefault, ViewStateMetrics, ViewStateZooming:
		return true
	}
	return false
}

// =============================================================================
// Display Composition
// =============================================================================

// DisplayMode is what the screen actually renders for a given combination
// of lifecycle and view state.
type DisplayMode string

const (
	// DisplayNeutral is the loading view forced while analysis is unresolved,
	// irrespective of ViewState.
	DisplayNeutral DisplayMode = "neutral"

	// DisplayPhoto is the resolved photo with the collapsed panel.
	DisplayPhoto DisplayMode = "photo"

	// DisplayMetrics is the resolved photo with the expanded detail panel.
	DisplayMetrics DisplayMode = "metrics"

	// DisplayZoom is the photo interaction mode.
	DisplayZoom DisplayMode = "zoom"

	// DisplayMessage is the full-screen terminal message for failed states.
	DisplayMessage DisplayMode = "message"
)

// completeDisplay maps the view state onto a display mode once the
// lifecycle has resolved to complete.
var completeDisplay = map[ViewState]DisplayMode{
	ViewStateDefault: DisplayPhoto,
	ViewStateMetrics: DisplayMetrics,
	ViewStateZooming: DisplayZoom,
}

// DisplayFor composes the two orthogonal states. Non-complete lifecycle
// states override the view: unresolved states force the neutral loading
// view, failed states force the terminal message.
func DisplayFor(ui UIState, view ViewState) DisplayMode {
	switch ui {
	case UIStateLoading, UIStateAnalyzing:
		return DisplayNeutral
	case UIStateNoResults, UIStateLowQuality:
		return DisplayMessage
	}
	if mode, ok := completeDisplay[view]; ok {
		return mode
	}
	return DisplayPhoto
}
