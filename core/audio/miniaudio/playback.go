package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/duplexkit/voice-core/core/audio"
)

// Player renders synthesized PCM with low latency. The device pulls from a
// buffer that producers push into; once the finished signal is set and the
// buffer drains, playback auto-stops and the completion callback fires
// exactly once.
type Player struct {
	audioContext *malgo.AllocatedContext

	mu                 sync.Mutex
	device             *malgo.Device
	connected          bool
	finished           bool
	completed          bool
	chunkIndex         int
	onPlaybackComplete func()
	onChunk            func(frame []byte, index int)
	onClear            func()

	audioMu sync.Mutex
	pending []byte
}

// SetCallbacks installs the diagnostics side channel: onChunk receives every
// pushed frame with a monotonically increasing index, onClear fires when
// buffered audio is discarded.
func (p *Player) SetCallbacks(onChunk func(frame []byte, index int), onClear func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChunk = onChunk
	p.onClear = onClear
}

// Connect establishes the output pipeline at the pipeline sample rate.
// Connecting while already connected fails fast with [audio.ErrDeviceBusy].
func (p *Player) Connect(onPlaybackComplete func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return audio.ErrDeviceBusy
	}

	encodingInfo := audio.GetDefaultEncodingInfo()
	format := malgo.FormatS16
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = uint32(encodingInfo.SampleRate) / 10 // ~100ms of audio
	config.Periods = 4

	device, err := malgo.InitDevice(
		p.audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: p.processAudio(bytesPerFrame)},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	p.device = device
	p.connected = true
	p.finished = false
	p.completed = false
	p.onPlaybackComplete = onPlaybackComplete
	return nil
}

// PushPCM enqueues one chunk for playback. Chunks pushed after the finished
// signal are ignored so completion can never fire twice.
func (p *Player) PushPCM(frame []byte) error {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return audio.ErrNotConnected
	}
	if p.finished {
		p.mu.Unlock()
		return fmt.Errorf("playback already finished")
	}
	onChunk := p.onChunk
	index := p.chunkIndex
	p.chunkIndex++
	p.mu.Unlock()

	if onChunk != nil {
		onChunk(frame, index)
	}

	p.audioMu.Lock()
	p.pending = append(p.pending, frame...)
	p.audioMu.Unlock()
	return nil
}

// SendFinishedSignal marks that no further audio will arrive. Once the
// buffer drains, playback stops and the completion callback fires.
func (p *Player) SendFinishedSignal() {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()

	p.audioMu.Lock()
	drained := len(p.pending) == 0
	p.audioMu.Unlock()
	if drained {
		p.complete()
	}
}

// Clear discards all buffered audio immediately without waiting for drain.
// Safe to call repeatedly and when nothing is buffered.
func (p *Player) Clear() {
	p.audioMu.Lock()
	p.pending = nil
	p.audioMu.Unlock()

	p.mu.Lock()
	onClear := p.onClear
	p.mu.Unlock()
	if onClear != nil {
		onClear()
	}
}

// Stop clears buffered audio, releases the output pipeline and resets all
// counters. The player can be connected again afterwards.
func (p *Player) Stop() error {
	p.Clear()

	p.mu.Lock()
	device := p.device
	p.device = nil
	p.connected = false
	p.finished = false
	p.completed = false
	p.chunkIndex = 0
	p.onPlaybackComplete = nil
	p.mu.Unlock()

	if device == nil {
		return nil
	}

	var stopErr error
	if device.IsStarted() {
		if err := device.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop playback device: %w", err)
		}
	}
	device.Uninit()
	return stopErr
}

func (p *Player) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		p.audioMu.Lock()
		n := copy(pOutput[:min(need, len(pOutput))], p.pending)
		if n >= len(p.pending) {
			p.pending = nil
		} else {
			p.pending = p.pending[n:]
		}
		drained := len(p.pending) == 0
		p.audioMu.Unlock()

		if drained {
			p.mu.Lock()
			finished := p.finished
			p.mu.Unlock()
			if finished {
				// Stopping the device from its own callback would deadlock.
				go p.complete()
			}
		}
	}
}

// complete fires the completion callback exactly once and releases the
// pipeline.
func (p *Player) complete() {
	p.mu.Lock()
	if p.completed || !p.connected {
		p.mu.Unlock()
		return
	}
	p.completed = true
	callback := p.onPlaybackComplete
	p.mu.Unlock()

	_ = p.Stop()
	if callback != nil {
		callback()
	}
}
