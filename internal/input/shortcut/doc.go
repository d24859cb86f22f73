// Package shortcut normalizes raw keyboard and mouse events into the
// canonical tokens stored in the shortcut settings.
//
// A token names one physical input:
//
//	V, 7                single digit or uppercase letter
//	F1 .. F99           function keys
//	Up, PageDown, ...   named special keys
//	LShift, RControl    side-qualified modifiers
//	Numpad4             numeric pad keys, taken from the device code
//	MouseButton4        extra mouse buttons (never the primary three)
//	Disabled            shortcut cleared (produced by Escape)
//
// Normalization is stateless and total: every event either yields exactly
// one token or is rejected.
package shortcut
