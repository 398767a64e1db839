package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"jamsesh/midi"
	"jamsesh/sequencer"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "playback.bpm")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// MaxNameLen bounds user.name.
const MaxNameLen = 32

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateUser()...)
	errs = append(errs, c.validateRelay()...)
	errs = append(errs, c.validatePlayback()...)
	errs = append(errs, c.validateTracks()...)
	errs = append(errs, c.validateMIDI()...)
	errs = append(errs, c.validateLog()...)
	if c.Sync.PendingTTL < 0 {
		errs = append(errs, ValidationError{Field: "sync.pending_ttl", Value: c.Sync.PendingTTL, Message: "must be non-negative"})
	}
	return errs
}

func (c *Config) validateUser() []ValidationError {
	if len(c.User.Name) > MaxNameLen {
		return []ValidationError{{
			Field:   "user.name",
			Value:   c.User.Name,
			Message: fmt.Sprintf("exceeds maximum of %d characters", MaxNameLen),
		}}
	}
	return nil
}

func (c *Config) validateRelay() []ValidationError {
	var errs []ValidationError
	u, err := url.Parse(c.Relay.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "relay.url",
			Value:   c.Relay.URL,
			Message: "must be a ws:// or wss:// URL",
		})
	}
	if c.Relay.Listen == "" {
		errs = append(errs, ValidationError{Field: "relay.listen", Value: c.Relay.Listen, Message: "must not be empty"})
	}
	return errs
}

func (c *Config) validatePlayback() []ValidationError {
	if c.Playback.BPM < sequencer.MinBPM || c.Playback.BPM > sequencer.MaxBPM {
		return []ValidationError{{
			Field:   "playback.bpm",
			Value:   c.Playback.BPM,
			Message: fmt.Sprintf("must be between %d and %d", sequencer.MinBPM, sequencer.MaxBPM),
		}}
	}
	return nil
}

func (c *Config) validateTracks() []ValidationError {
	var errs []ValidationError
	for i, p := range c.Tracks.SynthPolicies {
		if _, err := sequencer.ParsePolicyKind(p); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tracks.synth_policies[%d]", i),
				Value:   p,
				Message: policyMessage(),
			})
		}
	}
	if c.Tracks.SamplerPolicy != "" {
		if _, err := sequencer.ParsePolicyKind(c.Tracks.SamplerPolicy); err != nil {
			errs = append(errs, ValidationError{Field: "tracks.sampler_policy", Value: c.Tracks.SamplerPolicy, Message: policyMessage()})
		}
	}
	return errs
}

func policyMessage() string {
	var names []string
	for _, p := range sequencer.Policies() {
		names = append(names, string(p))
	}
	return "must be one of: " + strings.Join(names, ", ")
}

func (c *Config) validateMIDI() []ValidationError {
	var errs []ValidationError
	channel := func(field string, ch int) {
		if ch < 1 || ch > 16 {
			errs = append(errs, ValidationError{Field: field, Value: ch, Message: "must be a channel between 1 and 16"})
		}
	}
	for i, ch := range c.MIDI.SynthChannels {
		channel(fmt.Sprintf("midi.synth_channels[%d]", i), ch)
	}
	channel("midi.sampler_channel", c.MIDI.SamplerChannel)
	if _, ok := midi.LookupKit(c.MIDI.Kit); !ok && len(c.MIDI.SampleNotes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "midi.kit",
			Value:   c.MIDI.Kit,
			Message: "must be one of: " + strings.Join(midi.KitNames(), ", "),
		})
	}
	for i, n := range c.MIDI.SampleNotes {
		if n < 0 || n > 127 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("midi.sample_notes[%d]", i),
				Value:   n,
				Message: "must be a note between 0 and 127",
			})
		}
	}
	if c.MIDI.Velocity < 1 || c.MIDI.Velocity > 127 {
		errs = append(errs, ValidationError{Field: "midi.velocity", Value: c.MIDI.Velocity, Message: "must be between 1 and 127"})
	}
	return errs
}

func (c *Config) validateLog() []ValidationError {
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		return []ValidationError{{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		}}
	}
	return nil
}
