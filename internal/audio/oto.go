package audio

import (
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/jfmyers9/tuner/internal/radio"
)

// OtoOutput plays through the platform audio device.
// Only one may exist per process.
type OtoOutput struct {
	ctx        *oto.Context
	bufferSize int
}

// NewOtoOutput opens the audio device. buffer sets the per-player buffer
// length; zero uses the driver default.
func NewOtoOutput(format Format, buffer time.Duration) (*OtoOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   buffer,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, &radio.Error{Kind: radio.KindAudio, Op: "open device", Err: err}
	}
	<-ready

	if err := ctx.Err(); err != nil {
		return nil, &radio.Error{Kind: radio.KindAudio, Op: "open device", Err: err}
	}

	return &OtoOutput{
		ctx:        ctx,
		bufferSize: int(buffer.Seconds() * float64(format.BytesPerSecond())),
	}, nil
}

// NewVoice implements Output
func (o *OtoOutput) NewVoice(r io.Reader) Voice {
	p := o.ctx.NewPlayer(r)
	if o.bufferSize > 0 {
		p.SetBufferSize(o.bufferSize)
	}
	return p
}
