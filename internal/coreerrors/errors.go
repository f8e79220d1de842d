// Package coreerrors names the error taxonomy the renderer and minimap use
// to classify failures: most are recovered locally and never surface as a
// returned error, but callers that want to observe them can match against
// these sentinels with errors.Is.
package coreerrors

import "errors"

var (
	// ModelInconsistent marks a dangling instance reference or unknown
	// layer key. Recovered locally by dropping the offending element; never
	// returned from Render, and Render does not log the drop.
	ModelInconsistent = errors.New("model inconsistent: dangling reference or unknown layer")

	// BudgetExhausted marks a render that stopped early because it hit its
	// polygon budget. Surfaced once per render as a warning; the partial
	// scene produced up to that point is valid and left attached.
	BudgetExhausted = errors.New("render budget exhausted")

	// InvalidColor marks a polygon whose resolved layer color was invalid
	// (zero alpha); the renderer falls back to a sentinel color
	// (palette.DefaultColor) and does not log the fallback.
	InvalidColor = errors.New("invalid layer color")

	// ViewportLocked marks a rejected user-initiated transform change while
	// the viewport is locked. The caller's onViewportBlocked callback fires;
	// state is left unmutated.
	ViewportLocked = errors.New("viewport is locked")

	// InitNotReady marks an operation invoked before initialization
	// completed. Callers get a well-defined not-ready sentinel rather than
	// a zero value masquerading as a real result.
	InitNotReady = errors.New("renderer not initialized")

	// RerenderSuperseded marks a render pass whose generation moved on
	// before it finished: some caller hook (OnProgress, typically) kicked
	// off a newer rerender while this one was still running. The renderer
	// discards the stale pass's result instead of overwriting lastResult
	// with outdated data.
	RerenderSuperseded = errors.New("rerender superseded")
)
