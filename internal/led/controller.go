// Package led drives a board LED as a recording indicator.
package led

// Patterns understood by Controller.Set.
const (
	PatternSolid = "solid"
	PatternBlink = "blink"
)

// Controller abstracts LED hardware across boards.
type Controller interface {
	// Set switches an LED on or off. pattern is PatternSolid, PatternBlink or
	// empty to leave the current trigger alone.
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types this board exposes.
	Available() []string
}
