package audio

const (
	// DefaultSampleRate is the sample rate used throughout the pipeline.
	// Capture, recognition, synthesis and playback all run at 16 kHz.
	DefaultSampleRate = 16000
	DefaultFormat     = "pcm"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

// ByteSize returns the number of bytes per sample for the format.
func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingPCM, EncodingLinear16:
		return 2
	}
	return -1
}

const (
	// EncodingPCM is 16-bit signed little-endian PCM, the wire format of the
	// recognition and synthesis task sessions.
	EncodingPCM encodingFormat = "pcm"
	// EncodingLinear16 is an alias some backends use for the same format.
	EncodingLinear16 encodingFormat = "linear16"
)
