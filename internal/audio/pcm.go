package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"
)

// pcmReader sits between a decoded source and the output device. It
// applies software gain to s16le samples and counts consumed bytes. The
// device pulls from it on its own goroutine, so shared fields are atomic.
type pcmReader struct {
	src io.ReadCloser

	gain     atomic.Uint64 // math.Float64bits of the linear gain
	consumed atomic.Int64  // bytes handed to the device
	finished atomic.Bool   // source returned an error or EOF

	// Read-side only: a dangling byte when the source splits a sample
	carry    byte
	hasCarry bool
}

func newPCMReader(src io.ReadCloser, gain float64) *pcmReader {
	r := &pcmReader{src: src}
	r.setGain(gain)
	return r
}

func (r *pcmReader) setGain(g float64) {
	r.gain.Store(math.Float64bits(g))
}

func (r *pcmReader) Read(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, nil
	}

	start := 0
	if r.hasCarry {
		p[0] = r.carry
		r.hasCarry = false
		start = 1
	}

	n, err := r.src.Read(p[start:])
	n += start

	// Keep sample alignment for the gain stage
	if n%2 == 1 {
		r.carry = p[n-1]
		r.hasCarry = true
		n--
	}

	applyGain(p[:n], math.Float64frombits(r.gain.Load()))
	r.consumed.Add(int64(n))

	if err != nil {
		r.finished.Store(true)
	}
	return n, err
}

func (r *pcmReader) Close() error {
	r.finished.Store(true)
	return r.src.Close()
}

// applyGain scales little-endian int16 samples in place, saturating at the
// type's limits.
func applyGain(buf []byte, gain float64) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(buf[i:])))
		scaled := math.Round(sample * gain)
		scaled = max(math.MinInt16, min(math.MaxInt16, scaled))
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(scaled)))
	}
}
