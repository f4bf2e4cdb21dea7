// Package miniaudio provides the capture and playback devices of the voice
// pipeline on top of malgo. Capture feeds 16 kHz mono s16 frames to the
// recognition gateway; playback renders synthesized frames through a
// low-latency push path.
package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/duplexkit/voice-core/core/audio"
)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext

	recorder Recorder
	player   Player
}

// NewClient initializes the shared audio backend. It fails with
// [audio.ErrUnsupported] when the platform offers no usable backend.
func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrUnsupported, err)
	}

	client := Client{audioContext: audioCtx}
	client.recorder.audioContext = audioCtx
	client.player.audioContext = audioCtx

	return &client, nil
}

func (c *Client) Recorder() *Recorder { return &c.recorder }
func (c *Client) Player() *Player     { return &c.player }

func (c *Client) Close() {
	_ = c.recorder.Close()
	_ = c.player.Stop()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
