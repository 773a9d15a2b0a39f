// Package clip copies handoff text to the system clipboard.
package clip

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable reports that no clipboard mechanism is usable on this
// system. Callers treat it as a warning, not a failure.
var ErrUnavailable = errors.New("clipboard unavailable")

// Copy places text on the system clipboard.
func Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
