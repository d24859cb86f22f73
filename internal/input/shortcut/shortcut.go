package shortcut

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Token is a canonical shortcut token.
type Token string

// Disabled is stored when the user clears a shortcut with Escape.
const Disabled Token = "Disabled"

const (
	numpadPrefix = "Numpad"
	arrowPrefix  = "Arrow"
	mousePrefix  = "MouseButton"
)

// Location is the physical side reported for a key.
type Location int

const (
	// LocationStandard is a key with a single position.
	LocationStandard Location = iota
	// LocationLeft is the left-hand copy of a duplicated key.
	LocationLeft
	// LocationRight is the right-hand copy of a duplicated key.
	LocationRight
	// LocationNumpad is a key on the numeric pad.
	LocationNumpad
)

// KeyEvent is a raw keyboard event.
type KeyEvent struct {
	// Key is the produced value: a printable character or a key name
	// such as "ArrowDown", "Shift" or "Escape".
	Key string
	// Code identifies the physical key, e.g. "Numpad4" or "KeyV".
	Code string
	// Location tells left and right modifiers apart.
	Location Location
}

// MouseEvent is a raw mouse button event. Button is zero based:
// 0 primary, 1 middle, 2 secondary, 3 and above extra buttons.
type MouseEvent struct {
	Button int
}

var (
	singleCharPattern = regexp.MustCompile(`^[0-9A-Z]$`)
	functionPattern   = regexp.MustCompile(`^F[0-9]{1,2}$`)
	mousePattern      = regexp.MustCompile(`^MouseButton[0-9]+$`)
)

// namedKeys is the allow-list of special key names.
var namedKeys = map[string]bool{
	"CapsLock":  true,
	"Space":     true,
	"Backspace": true,
	"Delete":    true,
	"Enter":     true,
	"Up":        true,
	"Down":      true,
	"Left":      true,
	"Right":     true,
	"Home":      true,
	"End":       true,
	"PageUp":    true,
	"PageDown":  true,
	"Escape":    true,
	"LShift":    true,
	"RShift":    true,
	"LAlt":      true,
	"RAlt":      true,
	"LControl":  true,
	"RControl":  true,
}

// NormalizeKey converts a keyboard event into a token. The boolean is
// false when the event falls outside the accepted grammar.
func NormalizeKey(ev KeyEvent) (Token, bool) {
	k := ev.Key
	if utf8.RuneCountInString(k) == 1 {
		k = strings.ToUpper(k)
	} else if strings.HasPrefix(k, arrowPrefix) {
		k = strings.TrimPrefix(k, arrowPrefix)
	}

	if k == " " {
		k = "Space"
	}
	if strings.HasPrefix(ev.Code, numpadPrefix) {
		k = ev.Code
	}

	switch k {
	case "Control", "Alt", "Shift":
		if ev.Location == LocationLeft {
			k = "L" + k
		} else {
			k = "R" + k
		}
	}

	if !accepted(k) {
		return "", false
	}
	if k == "Escape" {
		return Disabled, true
	}
	return Token(k), true
}

// NormalizeMouse converts a mouse event into a token. The primary, middle
// and secondary buttons are rejected.
func NormalizeMouse(ev MouseEvent) (Token, bool) {
	if ev.Button <= 2 {
		return "", false
	}
	return Token(mousePrefix + strconv.Itoa(ev.Button+1)), true
}

func accepted(k string) bool {
	return singleCharPattern.MatchString(k) ||
		functionPattern.MatchString(k) ||
		namedKeys[k] ||
		strings.HasPrefix(k, numpadPrefix)
}

// Valid reports whether t may be persisted in a shortcut slot.
func (t Token) Valid() bool {
	s := string(t)
	switch {
	case t == Disabled:
		return true
	case s == "Escape":
		return false
	case mousePattern.MatchString(s):
		n, err := strconv.Atoi(strings.TrimPrefix(s, mousePrefix))
		return err == nil && n > 3
	default:
		return accepted(s)
	}
}

// IsMouse reports whether t names a mouse button.
func (t Token) IsMouse() bool {
	return strings.HasPrefix(string(t), mousePrefix)
}

// String returns the token text.
func (t Token) String() string {
	return string(t)
}
