package quanta

// Node is an audio generator driven by a host. The host calls Process once
// per render quantum from its render goroutine, and Reset when it wants all
// pending and in-flight state dropped; Reset is also called on the render
// goroutine, or after the render goroutine has stopped.
//
// A node that is not initialized produces silence and forgets everything that
// was scheduled to it.
type Node interface {
	Name() string
	NumChannels() int

	Initialize()
	Uninitialize()
	IsInitialized() bool

	Process(q Quantum, out AudioBus)
	Reset()
}
