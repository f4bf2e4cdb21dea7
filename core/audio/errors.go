package audio

import "errors"

var (
	// ErrDeviceBusy is returned when acquiring a capture or playback device
	// that is already held. Acquisition fails fast instead of queueing.
	ErrDeviceBusy = errors.New("audio device already in use")
	// ErrNotConnected is returned when audio is pushed to a player that has
	// no output pipeline.
	ErrNotConnected = errors.New("audio player not connected")
	// ErrUnsupported is returned when the platform offers no usable audio
	// backend.
	ErrUnsupported = errors.New("no usable audio backend")
)
