package orchestration

import "encoding/binary"

// SpeechDetector decides whether a captured frame counts as speech. The
// exact voice-activity boundary is a tunable policy, not a protocol
// constant, so it is pluggable.
type SpeechDetector interface {
	IsSpeech(frame []byte) bool
}

// anyFrameDetector treats every non-empty frame as speech. It is the
// default: frames are forwarded to the recognizer unconditionally and the
// recognizer decides what is speech.
type anyFrameDetector struct{}

func (anyFrameDetector) IsSpeech(frame []byte) bool { return len(frame) > 0 }

// EnergyDetector treats a frame as speech when its mean absolute 16-bit
// sample amplitude exceeds Threshold.
type EnergyDetector struct {
	// Threshold is the mean absolute amplitude, in 16-bit sample units,
	// above which a frame counts as speech.
	Threshold int
}

func (d EnergyDetector) IsSpeech(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}

	var sum int64
	samples := 0
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int64(int16(binary.LittleEndian.Uint16(frame[i:])))
		if sample < 0 {
			sample = -sample
		}
		sum += sample
		samples++
	}
	return sum/int64(samples) > int64(d.Threshold)
}
