// Package audio owns the local output device.
//
// A Sink is an actor: one goroutine holds the device player and every
// operation reaches it over a channel, so callers never share the player
// directly.
package audio

import (
	"io"
	"sync"
	"time"
)

// Voice is a single stream playing on the output device.
// *oto.Player satisfies it.
type Voice interface {
	Play()
	Pause()
	IsPlaying() bool
	BufferedSize() int
}

// Output creates voices on an audio device
type Output interface {
	NewVoice(r io.Reader) Voice
}

// Format describes the PCM layout accepted by an Output
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the s16le data rate for the format
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Stats is a snapshot of sink health
type Stats struct {
	QueueLen int           // Bound sources still producing audio (0 or 1)
	Empty    bool          // Nothing left to play
	Paused   bool          // Output paused
	Position time.Duration // Audio actually played for the bound source
}

// Sink serializes all access to the output device
type Sink struct {
	ops  chan func()
	quit chan struct{}
	done chan struct{}
	once sync.Once

	// Owned by the run goroutine
	out    Output
	format Format
	voice  Voice
	pcm    *pcmReader
	volume float64
	paused bool
}

// NewSink starts the sink goroutine
func NewSink(out Output, format Format) *Sink {
	s := &Sink{
		ops:    make(chan func()),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		out:    out,
		format: format,
		volume: 1,
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.quit:
			s.stop()
			return
		}
	}
}

// do runs fn on the sink goroutine and waits for it. After Close it is a
// no-op.
func (s *Sink) do(fn func()) {
	finished := make(chan struct{})
	select {
	case s.ops <- func() { fn(); close(finished) }:
		<-finished
	case <-s.done:
	}
}

// Append binds src as the sink's source, replacing anything already bound.
// The sink takes ownership and closes src on Stop or replacement. Output
// starts paused; call Play.
func (s *Sink) Append(src io.ReadCloser) {
	s.do(func() {
		s.stop()
		s.pcm = newPCMReader(src, s.volume)
		s.voice = s.out.NewVoice(s.pcm)
		s.paused = true
	})
}

// Play starts or resumes output
func (s *Sink) Play() {
	s.do(func() {
		s.paused = false
		if s.voice != nil {
			s.voice.Play()
		}
	})
}

// Pause suspends output and keeps the bound source
func (s *Sink) Pause() {
	s.do(func() {
		s.paused = true
		if s.voice != nil {
			s.voice.Pause()
		}
	})
}

// Stop halts output and releases the bound source
func (s *Sink) Stop() {
	s.do(s.stop)
}

// SetVolume sets the linear gain applied to the bound and future sources
func (s *Sink) SetVolume(v float64) {
	s.do(func() {
		s.volume = v
		if s.pcm != nil {
			s.pcm.setGain(v)
		}
	})
}

// Stats samples the sink state
func (s *Sink) Stats() Stats {
	var st Stats
	s.do(func() {
		st = s.stats()
	})
	return st
}

// Close stops output and ends the sink goroutine
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *Sink) stop() {
	if s.voice != nil {
		s.voice.Pause()
		s.voice = nil
	}
	if s.pcm != nil {
		_ = s.pcm.Close()
		s.pcm = nil
	}
	s.paused = false
}

func (s *Sink) stats() Stats {
	st := Stats{Paused: s.paused, Empty: true}
	if s.voice == nil || s.pcm == nil {
		return st
	}

	buffered := s.voice.BufferedSize()
	played := s.pcm.consumed.Load() - int64(buffered)
	if bps := s.format.BytesPerSecond(); bps > 0 && played > 0 {
		st.Position = time.Duration(played) * time.Second / time.Duration(bps)
	}

	if !s.pcm.finished.Load() || buffered > 0 {
		st.QueueLen = 1
		st.Empty = false
	}
	return st
}
