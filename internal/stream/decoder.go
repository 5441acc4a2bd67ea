package stream

import (
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// Decoded is signed 16-bit little-endian stereo PCM
type Decoded interface {
	io.Reader
	SampleRate() int
}

// DecodeFunc turns a compressed byte stream into PCM. It may block while
// it reads the first frame headers.
type DecodeFunc func(r io.Reader) (Decoded, error)

// DecodeMP3 decodes MPEG-1/2 layer III audio.
func DecodeMP3(r io.Reader) (Decoded, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return d, nil
}
