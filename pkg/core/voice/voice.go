// Package voice defines the speech contracts the call orchestrator consumes.
// Transcription and synthesis implementations live outside this repository;
// the orchestrator only depends on the interfaces here.
package voice

import (
	"context"
	"io"
)

// Settings selects the voice used when speaking to a caller.
type Settings struct {
	Voice    string  // Voice identifier
	Speed    float64 // Speed multiplier (0.6-1.5)
	Language string  // ISO language code
}

// Utterance is one finalized caller utterance.
// An empty Text means silence or a dropped call; the two are not
// distinguishable at this layer.
type Utterance struct {
	Text       string
	Confidence float64
	AudioRef   string
}

// Listener yields finalized caller utterances for one call, in order.
type Listener interface {
	Listen(ctx context.Context) (Utterance, error)
}

// Speaker delivers one assistant utterance to the call stream.
type Speaker interface {
	Speak(ctx context.Context, text string, settings Settings) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context) (Utterance, error)

func (f ListenerFunc) Listen(ctx context.Context) (Utterance, error) { return f(ctx) }

// SpeakerFunc adapts a function to the Speaker interface.
type SpeakerFunc func(ctx context.Context, text string, settings Settings) error

func (f SpeakerFunc) Speak(ctx context.Context, text string, settings Settings) error {
	return f(ctx, text, settings)
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Model      string // Provider-specific model
	Language   string // ISO language code (default: "en")
	Format     string // Audio format hint (wav, mp3, webm, etc.)
	SampleRate int    // Audio sample rate in Hz
}

// Transcript is the result of transcription.
type Transcript struct {
	Text       string  // Full transcribed text
	Language   string  // Detected or specified language
	Duration   float64 // Audio duration in seconds
	Confidence float64 // Overall confidence (0.0-1.0)
}

// Transcriber converts caller audio to text.
type Transcriber interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts one audio segment to text.
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice      string  // Voice identifier
	Speed      float64 // Speed multiplier
	Language   string  // Language code
	Format     string  // Output format: "wav", "mp3", or "pcm"
	SampleRate int     // Sample rate
}

// Synthesis is the result of text-to-speech.
type Synthesis struct {
	Audio    []byte
	Duration float64 // Audio duration in seconds
}

// Synthesizer converts assistant text to audio.
type Synthesizer interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// TranscriberListener adapts a Transcriber over a segmented audio source to
// the Listener interface. NextSegment returns one utterance worth of audio,
// or nil when the stream has ended.
type TranscriberListener struct {
	Transcriber Transcriber
	Opts        TranscribeOptions
	NextSegment func(ctx context.Context) (io.Reader, error)
}

func (l TranscriberListener) Listen(ctx context.Context) (Utterance, error) {
	if l.Transcriber == nil || l.NextSegment == nil {
		return Utterance{}, nil
	}
	segment, err := l.NextSegment(ctx)
	if err != nil {
		return Utterance{}, err
	}
	if segment == nil {
		return Utterance{}, nil
	}
	tr, err := l.Transcriber.Transcribe(ctx, segment, l.Opts)
	if err != nil {
		return Utterance{}, err
	}
	if tr == nil {
		return Utterance{}, nil
	}
	return Utterance{Text: tr.Text, Confidence: tr.Confidence}, nil
}

// SynthesizerSpeaker adapts a Synthesizer to the Speaker interface. Deliver
// receives the synthesized audio for transport to the call stream.
type SynthesizerSpeaker struct {
	Synthesizer Synthesizer
	Format      string
	SampleRate  int
	Deliver     func(ctx context.Context, s Synthesis) error
}

func (s SynthesizerSpeaker) Speak(ctx context.Context, text string, settings Settings) error {
	if s.Synthesizer == nil {
		return nil
	}
	out, err := s.Synthesizer.Synthesize(ctx, text, SynthesizeOptions{
		Voice:      settings.Voice,
		Speed:      settings.Speed,
		Language:   settings.Language,
		Format:     s.Format,
		SampleRate: s.SampleRate,
	})
	if err != nil {
		return err
	}
	if s.Deliver == nil || out == nil {
		return nil
	}
	return s.Deliver(ctx, *out)
}
