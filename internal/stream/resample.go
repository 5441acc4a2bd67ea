package stream

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/gopxl/beep/v2"
)

// ResampleQuality trades CPU for fidelity when a stream's rate differs
// from the output device
const ResampleQuality = 4

// bytesPerFrame is one s16le stereo sample pair
const bytesPerFrame = 4

// pcmStreamer reads s16le stereo PCM as a beep.Streamer
type pcmStreamer struct {
	r   io.Reader
	buf []byte
	err error
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}
	need := len(samples) * bytesPerFrame
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.r, buf)
	frames := n / bytesPerFrame
	for i := 0; i < frames; i++ {
		b := buf[i*bytesPerFrame:]
		samples[i][0] = float64(int16(binary.LittleEndian.Uint16(b))) / 32768
		samples[i][1] = float64(int16(binary.LittleEndian.Uint16(b[2:]))) / 32768
	}
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		s.err = err
	}
	return frames, frames > 0
}

func (s *pcmStreamer) Err() error {
	if errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}

// resampled converts decoded PCM to another sample rate
type resampled struct {
	src     *pcmStreamer
	stream  beep.Streamer
	rate    int
	samples [][2]float64
	out     []byte
	pending []byte // encoded bytes not yet returned
}

// Resample returns pcm converted to rate. It returns pcm unchanged when
// the rates already match.
func Resample(pcm Decoded, rate int) Decoded {
	if pcm.SampleRate() == rate {
		return pcm
	}
	src := &pcmStreamer{r: pcm}
	return &resampled{
		src:    src,
		stream: beep.Resample(ResampleQuality, beep.SampleRate(pcm.SampleRate()), beep.SampleRate(rate), src),
		rate:   rate,
	}
}

func (r *resampled) SampleRate() int {
	return r.rate
}

func (r *resampled) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	frames := max(len(p)/bytesPerFrame, 1)
	if cap(r.samples) < frames {
		r.samples = make([][2]float64, frames)
		r.out = make([]byte, frames*bytesPerFrame)
	}
	samples := r.samples[:frames]

	n, ok := r.stream.Stream(samples)
	if n == 0 && !ok {
		if err := r.src.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	out := r.out[:n*bytesPerFrame]
	for i := 0; i < n; i++ {
		b := out[i*bytesPerFrame:]
		binary.LittleEndian.PutUint16(b, uint16(toInt16(samples[i][0])))
		binary.LittleEndian.PutUint16(b[2:], uint16(toInt16(samples[i][1])))
	}
	copied := copy(p, out)
	r.pending = out[copied:]
	return copied, nil
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * 32767))
}
