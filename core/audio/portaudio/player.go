// Package portaudio provides the pull-mode playback fallback. Audio is kept
// in an explicit FIFO of PCM chunks and fed to a blocking output stream by a
// render goroutine; it is used when the low-latency push backend is
// unavailable.
package portaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/duplexkit/voice-core/core/audio"
)

const defaultBufferSize = 1600 // 100ms of 16 kHz mono

type Player struct {
	bufferSize int

	mu                 sync.Mutex
	stream             *portaudio.Stream
	out                []int16
	connected          bool
	finished           bool
	completed          bool
	chunkIndex         int
	queued             []byte
	onPlaybackComplete func()
	onChunk            func(frame []byte, index int)
	onClear            func()

	wake chan struct{}
	done chan struct{}
}

func NewPlayer() *Player {
	return &Player{bufferSize: defaultBufferSize}
}

func (p *Player) SetCallbacks(onChunk func(frame []byte, index int), onClear func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChunk = onChunk
	p.onClear = onClear
}

// Connect initializes the output stream and starts the render loop.
func (p *Player) Connect(onPlaybackComplete func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return audio.ErrDeviceBusy
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", audio.ErrUnsupported, err)
	}

	p.out = make([]int16, p.bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(audio.DefaultSampleRate), p.bufferSize, p.out)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	p.stream = stream
	p.connected = true
	p.finished = false
	p.completed = false
	p.onPlaybackComplete = onPlaybackComplete
	p.wake = make(chan struct{}, 1)
	p.done = make(chan struct{})

	go p.render(p.wake, p.done)
	return nil
}

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
	p.queued = append(p.queued, frame...)
	p.mu.Unlock()

	if onChunk != nil {
		onChunk(frame, index)
	}
	p.signalWake()
	return nil
}

func (p *Player) SendFinishedSignal() {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
	p.signalWake()
}

func (p *Player) Clear() {
	p.mu.Lock()
	p.queued = nil
	onClear := p.onClear
	p.mu.Unlock()
	if onClear != nil {
		onClear()
	}
	p.signalWake()
}

func (p *Player) Stop() error {
	p.Clear()

	p.mu.Lock()
	stream := p.stream
	done := p.done
	p.stream = nil
	p.connected = false
	p.finished = false
	p.completed = false
	p.chunkIndex = 0
	p.onPlaybackComplete = nil
	p.mu.Unlock()

	if stream == nil {
		return nil
	}

	p.signalWake()
	<-done

	var stopErr error
	if err := stream.Stop(); err != nil {
		stopErr = fmt.Errorf("failed to stop output stream: %w", err)
	}
	stream.Close()
	_ = portaudio.Terminate()
	return stopErr
}

// render consumes the FIFO one buffer at a time and blocks on the stream
// write, portaudio's pull model.
func (p *Player) render(wake chan struct{}, done chan struct{}) {
	defer close(done)

	frameBytes := p.bufferSize * 2
	for {
		p.mu.Lock()
		if !p.connected || p.stream == nil {
			p.mu.Unlock()
			return
		}

		if len(p.queued) == 0 {
			finished := p.finished
			p.mu.Unlock()
			if finished {
				go p.complete()
				return
			}
			<-wake
			continue
		}

		chunk := p.queued
		if len(chunk) > frameBytes {
			chunk = chunk[:frameBytes]
			p.queued = p.queued[frameBytes:]
		} else {
			p.queued = nil
		}
		stream := p.stream
		out := p.out
		p.mu.Unlock()

		// Partial chunks are zero-padded to a full buffer.
		padded := make([]byte, frameBytes)
		copy(padded, chunk)
		if err := binary.Read(bytes.NewReader(padded), binary.LittleEndian, out); err != nil {
			continue
		}
		if err := stream.Write(); err != nil {
			continue
		}
	}
}

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

func (p *Player) signalWake() {
	p.mu.Lock()
	wake := p.wake
	p.mu.Unlock()
	if wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}
