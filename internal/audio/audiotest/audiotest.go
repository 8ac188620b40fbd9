// Package audiotest writes small WAV fixtures for tests.
package audiotest

import (
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteSilence writes a 16-bit PCM WAV of the given format and length.
func WriteSilence(t testing.TB, path string, sampleRate, channels int, length time.Duration) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	frames := int(length.Seconds() * float64(sampleRate))
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

// WriteHeaderOnly writes a 16-bit PCM WAV header declaring the given length
// with no sample data, for probing long recordings cheaply.
func WriteHeaderOnly(t testing.TB, path string, sampleRate, channels int, length time.Duration) {
	t.Helper()

	byteRate := sampleRate * channels * 2
	dataSize := uint32(length.Seconds() * float64(byteRate))

	hdr := make([]byte, 0, 44)
	hdr = append(hdr, "RIFF"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 36+dataSize)
	hdr = append(hdr, "WAVEfmt "...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 16)
	hdr = binary.LittleEndian.AppendUint16(hdr, 1) // PCM
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(channels))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(sampleRate))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(byteRate))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(channels*2))
	hdr = binary.LittleEndian.AppendUint16(hdr, 16)
	hdr = append(hdr, "data"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, dataSize)

	if err := os.WriteFile(path, hdr, 0o644); err != nil {
		t.Fatalf("write wav header: %v", err)
	}
}
