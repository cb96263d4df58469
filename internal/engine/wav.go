package engine

import (
	"bytes"
	"encoding/binary"
	"math"
)

// encodeWAV packs mono float samples into a 16-bit PCM WAV payload for
// multipart upload to the ASR endpoint.
func encodeWAV(samples []float64, sampleRate int) []byte {
	dataLen := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))

	for _, s := range samples {
		v := math.Max(-1, math.Min(1, s))
		binary.Write(&buf, binary.LittleEndian, int16(v*math.MaxInt16))
	}

	return buf.Bytes()
}
