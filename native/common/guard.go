package common

import "errors"

// ErrModulePaused is returned by Guard when the module's circuit breaker is
// engaged. Reads remain available while mutations are rejected.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the pause flags maintained by module configuration.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused. A nil view or
// empty module name disables the gate.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
