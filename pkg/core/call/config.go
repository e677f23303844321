package call

import (
	"time"

	"github.com/evermem/linekeeper/pkg/core/voice"
)

// Config is the process-wide call handling configuration. It is read-only
// after construction.
type Config struct {
	MaxCallDuration   time.Duration
	AutoAnswer        bool
	GreetingMessage   string
	EndingMessage     string
	EmergencyContacts map[string]struct{}
	AllowedCallers    map[string]struct{}
	Voice             voice.Settings
}

// DefaultConfig returns the built-in call handling defaults.
func DefaultConfig() Config {
	return Config{
		MaxCallDuration: 5 * time.Minute,
		AutoAnswer:      true,
		GreetingMessage: "Hello, you've reached their AI assistant. How can I help you?",
		EndingMessage:   "Thanks for calling. Goodbye!",
		Voice: voice.Settings{
			Voice:    "default",
			Speed:    1.0,
			Language: "en",
		},
	}
}

// withDefaults normalizes zero values so the rest of the package never has
// to nil-check maps or guess at a duration.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxCallDuration <= 0 {
		c.MaxCallDuration = def.MaxCallDuration
	}
	if c.GreetingMessage == "" {
		c.GreetingMessage = def.GreetingMessage
	}
	if c.EndingMessage == "" {
		c.EndingMessage = def.EndingMessage
	}
	if c.EmergencyContacts == nil {
		c.EmergencyContacts = make(map[string]struct{})
	}
	if c.AllowedCallers == nil {
		c.AllowedCallers = make(map[string]struct{})
	}
	if c.Voice.Voice == "" {
		c.Voice.Voice = def.Voice.Voice
	}
	if c.Voice.Speed == 0 {
		c.Voice.Speed = def.Voice.Speed
	}
	if c.Voice.Language == "" {
		c.Voice.Language = def.Voice.Language
	}
	return c
}
