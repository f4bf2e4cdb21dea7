package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/duplexkit/voice-core/core/audio"
)

// Recorder captures microphone input as fixed-format PCM frames. The device
// is owned exclusively; starting while already held fails fast with
// [audio.ErrDeviceBusy].
type Recorder struct {
	audioContext *malgo.AllocatedContext

	mu      sync.Mutex
	device  *malgo.Device
	onFrame func(frame []byte)
}

// Start opens the capture pipeline at 16 kHz mono and invokes onFrame for
// each produced buffer in arrival order.
func (r *Recorder) Start(onFrame func(frame []byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device != nil {
		return audio.ErrDeviceBusy
	}

	encodingInfo := audio.GetDefaultEncodingInfo()
	format := malgo.FormatS16
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3

	r.onFrame = onFrame

	device, err := malgo.InitDevice(r.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			r.mu.Lock()
			callback := r.onFrame
			r.mu.Unlock()
			if callback == nil {
				return
			}

			// The backend reuses pInput between callbacks; the frame handed
			// off must never change under the consumer.
			frame := make([]byte, n)
			copy(frame, pInput[:n])
			callback(frame)
		},
	})
	if err != nil {
		r.onFrame = nil
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.onFrame = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	r.device = device
	return nil
}

// Stop tears the capture pipeline down deterministically. Every step is
// attempted even if an earlier one fails so the device handle never leaks.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	device := r.device
	r.device = nil
	r.onFrame = nil
	r.mu.Unlock()

	if device == nil {
		return nil
	}

	var stopErr error
	if device.IsStarted() {
		if err := device.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop capture device: %w", err)
		}
	}
	device.Uninit()

	return stopErr
}

func (r *Recorder) Close() error {
	return r.Stop()
}
