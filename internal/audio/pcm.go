package audio

import (
	"encoding/binary"
)

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples decodes little-endian 16-bit PCM. A trailing odd byte is
// ignored.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}

// WAVHeader returns a 44-byte RIFF/WAVE header for 16-bit PCM. dataLen is
// the size of the data chunk in bytes.
func WAVHeader(sampleRate, channels int, dataLen uint32) []byte {
	h := make([]byte, 44)
	blockAlign := channels * BitDepth / 8
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 36+dataLen)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:], BitDepth)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], dataLen)
	return h
}

// StreamingWAVHeader is a WAV header with the largest representable data
// length, which players treat as an unbounded live stream.
func StreamingWAVHeader(sampleRate, channels int) []byte {
	return WAVHeader(sampleRate, channels, 0xFFFFFFFF-36)
}
