package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps raw PCM chunks in a minimal mono WAV container. Used to
// export retained synthesis audio, e.g. for voice samples.
func EncodeWAV(chunks [][]byte, encodingInfo EncodingInfo) []byte {
	dataLength := 0
	for _, chunk := range chunks {
		dataLength += len(chunk)
	}

	sampleSize := encodingInfo.Format.ByteSize()
	if sampleSize <= 0 {
		sampleSize = 2
	}

	buf := bytes.Buffer{}
	buf.Grow(44 + dataLength)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLength))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(encodingInfo.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(encodingInfo.SampleRate*sampleSize))
	binary.Write(&buf, binary.LittleEndian, uint16(sampleSize))
	binary.Write(&buf, binary.LittleEndian, uint16(8*sampleSize))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLength))
	for _, chunk := range chunks {
		buf.Write(chunk)
	}

	return buf.Bytes()
}
