package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jamsesh/config"
	"jamsesh/debug"
	"jamsesh/jam"
	"jamsesh/midi"
	"jamsesh/relay"
	"jamsesh/sequencer"
	"jamsesh/theme"
	"jamsesh/transport"
	"jamsesh/tui"
)

func newJoinCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Open the sequencer and join the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(cmd.Flags(), map[string]string{
				"name": "user.name",
				"url":  "relay.url",
				"bpm":  "playback.bpm",
				"port": "midi.port",
			})
			if err != nil {
				return err
			}
			if noMIDI, _ := cmd.Flags().GetBool("no-midi"); noMIDI {
				cfg.MIDI.Enabled = false
			}
			return a.join(cmd.Context(), cfg, offline)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&offline, "offline", false, "play locally without a relay")
	f.String("name", "", "name shown to other players")
	f.String("url", "", "relay WebSocket URL")
	f.Int("bpm", sequencer.DefaultBPM, "starting tempo")
	f.String("port", "", "MIDI output port (substring match)")
	f.Bool("no-midi", false, "do not open a MIDI output")
	return cmd
}

func (a *app) join(ctx context.Context, cfg *config.Config, offline bool) error {
	log, closer, err := debug.Open(cfg.LogDir(), cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()
	log = log.With("session_id", uuid.NewString())
	debug.Use(log)
	defer debug.Disable()

	palette, err := theme.Load(cfg.UI.Palette)
	if err != nil {
		return fmt.Errorf("palette: %w", err)
	}
	th := theme.New(palette)

	name := cfg.User.Name
	if name == "" {
		if name, err = tui.AskName(th); err != nil {
			return err
		}
		if path, err := config.SaveUserName(a.v, name); err != nil {
			log.Warn("could not remember name", "err", err)
		} else {
			log.Info("saved name", "path", path)
		}
	}

	layout, err := relay.LoadLayoutFile(cfg.Relay.Layout)
	if err != nil {
		return err
	}
	store, err := layout.Store()
	if err != nil {
		return err
	}
	cfg.ApplyPolicies(store)

	audio := openAudio(cfg, log)
	if c, ok := audio.(interface{ Close() error }); ok {
		defer c.Close()
	}

	var tr jam.Transport
	if !offline {
		ws, err := transport.Dial(ctx, cfg.Relay.URL, cfg.Relay.Origin, log)
		switch {
		case errors.Is(err, transport.ErrTransportUnavailable):
			fmt.Fprintf(os.Stderr, "relay unavailable, playing offline: %v\n", err)
			log.Warn("relay unavailable", "url", cfg.Relay.URL, "err", err)
		case err != nil:
			return err
		default:
			tr = ws
		}
	}

	session := jam.NewSession(store, audio, tr, jam.SessionConfig{
		Username:   name,
		BPM:        cfg.Playback.BPM,
		PendingTTL: cfg.Sync.PendingTTL,
		NoteOffset: cfg.Playback.NoteOffset,
	}, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		p := tea.NewProgram(tui.NewModel(session, session.Views(), th), tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openAudio(cfg *config.Config, log *slog.Logger) sequencer.AudioBackend {
	if !cfg.MIDI.Enabled {
		return midi.Null{}
	}
	out, err := midi.Open(cfg.MIDI.Port, cfg.Output(), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no MIDI output, playing silently: %v\n", err)
		log.Warn("midi unavailable", "err", err)
		return midi.Null{}
	}
	return out
}
