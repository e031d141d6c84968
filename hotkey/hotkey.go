package hotkey

// Hotkey delivers global key events for one registered combination.
// The channels stay valid until Unregister.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
