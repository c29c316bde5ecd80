package tui

import "github.com/buker/chatlib/internal/tui/shared"

// KeyMap re-exports the shared KeyMap
type KeyMap = shared.KeyMap

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return shared.DefaultKeyMap()
}
