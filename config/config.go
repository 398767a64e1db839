package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"jamsesh/midi"
	"jamsesh/sequencer"
	"jamsesh/transport"
)

// Config is the main configuration structure
type Config struct {
	User     UserConfig     `mapstructure:"user"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Tracks   TracksConfig   `mapstructure:"tracks"`
	Sync     SyncConfig     `mapstructure:"sync"`
	MIDI     MIDIConfig     `mapstructure:"midi"`
	UI       UIConfig       `mapstructure:"ui"`
	Log      LogConfig      `mapstructure:"log"`
}

type UserConfig struct {
	// Name is announced on connect; empty means ask at startup.
	Name string `mapstructure:"name"`
}

type RelayConfig struct {
	// URL the client dials.
	URL    string `mapstructure:"url"`
	Origin string `mapstructure:"origin"`
	// Listen is the relay server's bind address.
	Listen string `mapstructure:"listen"`
	// Layout is an optional YAML room layout for the relay server.
	Layout string `mapstructure:"layout"`
}

type PlaybackConfig struct {
	BPM        int `mapstructure:"bpm"`
	NoteOffset int `mapstructure:"note_offset"`
}

type TracksConfig struct {
	// SynthPolicies[i] applies to synth i; the last entry covers the rest.
	// Unset policies come from the room layout.
	SynthPolicies []string `mapstructure:"synth_policies"`
	SamplerPolicy string   `mapstructure:"sampler_policy"`
}

type SyncConfig struct {
	// PendingTTL expires unacknowledged edits; zero keeps them until resync.
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
}

// MIDIConfig channels are 1-16 as printed on hardware. Kit names the drum
// map; SampleNotes overrides it when set.
type MIDIConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Port           string `mapstructure:"port"`
	SynthChannels  []int  `mapstructure:"synth_channels"`
	SamplerChannel int    `mapstructure:"sampler_channel"`
	Kit            string `mapstructure:"kit"`
	SampleNotes    []int  `mapstructure:"sample_notes"`
	Velocity       int    `mapstructure:"velocity"`
}

type UIConfig struct {
	// Palette is a GIMP .gpl file; empty uses the built-in plasma palette.
	Palette string `mapstructure:"palette"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Dir holds debug.log for the client; empty means ConfigDir.
	Dir string `mapstructure:"dir"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			URL:    fmt.Sprintf("ws://localhost:%d/", transport.DefaultPort),
			Origin: "http://localhost/",
			Listen: fmt.Sprintf(":%d", transport.DefaultPort),
		},
		Playback: PlaybackConfig{
			BPM:        sequencer.DefaultBPM,
			NoteOffset: sequencer.DefaultNoteOffset,
		},
		MIDI: MIDIConfig{
			Enabled:        true,
			SynthChannels:  []int{1, 2},
			SamplerChannel: midi.DefaultSamplerChannel + 1,
			Kit:            midi.DefaultKit,
			Velocity:       100,
		},
		Log: LogConfig{Level: "info"},
	}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("user.name", defaults.User.Name)

	v.SetDefault("relay.url", defaults.Relay.URL)
	v.SetDefault("relay.origin", defaults.Relay.Origin)
	v.SetDefault("relay.listen", defaults.Relay.Listen)
	v.SetDefault("relay.layout", defaults.Relay.Layout)

	v.SetDefault("playback.bpm", defaults.Playback.BPM)
	v.SetDefault("playback.note_offset", defaults.Playback.NoteOffset)

	v.SetDefault("tracks.synth_policies", defaults.Tracks.SynthPolicies)
	v.SetDefault("tracks.sampler_policy", defaults.Tracks.SamplerPolicy)

	v.SetDefault("sync.pending_ttl", defaults.Sync.PendingTTL)

	v.SetDefault("midi.enabled", defaults.MIDI.Enabled)
	v.SetDefault("midi.port", defaults.MIDI.Port)
	v.SetDefault("midi.synth_channels", defaults.MIDI.SynthChannels)
	v.SetDefault("midi.sampler_channel", defaults.MIDI.SamplerChannel)
	v.SetDefault("midi.kit", defaults.MIDI.Kit)
	v.SetDefault("midi.sample_notes", defaults.MIDI.SampleNotes)
	v.SetDefault("midi.velocity", defaults.MIDI.Velocity)

	v.SetDefault("ui.palette", defaults.UI.Palette)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.dir", defaults.Log.Dir)
}

// NewViper reads cfgFile, or config.yaml from ConfigDir and the working
// directory, with JAMSESH_ environment overrides. A missing default file is
// not an error; a missing explicit file is.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("JAMSESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// SaveUserName remembers name in the file v was read from, or in
// ConfigFile when there was none.
func SaveUserName(v *viper.Viper, name string) (string, error) {
	v.Set("user.name", name)
	path := v.ConfigFileUsed()
	if path == "" {
		path = ConfigFile()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", err
		}
	}
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}
	return path, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jamsesh")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jamsesh"
	}
	return filepath.Join(home, ".config", "jamsesh")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LogDir is Log.Dir or ConfigDir.
func (c *Config) LogDir() string {
	if c.Log.Dir != "" {
		return c.Log.Dir
	}
	return ConfigDir()
}

// SynthPolicy returns the configured policy for synth i, if any.
func (c *Config) SynthPolicy(i int) (sequencer.PolicyKind, bool) {
	p := c.Tracks.SynthPolicies
	if len(p) == 0 {
		return "", false
	}
	kind, err := sequencer.ParsePolicyKind(p[min(i, len(p)-1)])
	return kind, err == nil
}

func (c *Config) SamplerPolicy() (sequencer.PolicyKind, bool) {
	kind, err := sequencer.ParsePolicyKind(c.Tracks.SamplerPolicy)
	return kind, err == nil
}

// ApplyPolicies overrides the store's voice policies with configured ones.
func (c *Config) ApplyPolicies(store *sequencer.Store) {
	for i, id := range store.Synths() {
		if kind, ok := c.SynthPolicy(i); ok {
			store.SetPolicy(id, kind)
		}
	}
	if id, ok := store.Sampler(); ok {
		if kind, ok := c.SamplerPolicy(); ok {
			store.SetPolicy(id, kind)
		}
	}
}

// Output converts the MIDI section to zero-based channels.
func (c *Config) Output() midi.OutputConfig {
	out := midi.OutputConfig{
		SamplerChannel: c.MIDI.SamplerChannel - 1,
		SampleNotes:    c.MIDI.SampleNotes,
		Velocity:       c.MIDI.Velocity,
	}
	if len(out.SampleNotes) == 0 {
		if kit, ok := midi.LookupKit(c.MIDI.Kit); ok {
			out.SampleNotes = kit.SampleNotes()
		}
	}
	for _, ch := range c.MIDI.SynthChannels {
		out.SynthChannels = append(out.SynthChannels, ch-1)
	}
	return out
}
