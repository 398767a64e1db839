package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"jamsesh/debug"
	"jamsesh/relay"
)

func newRelayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the relay server that holds the shared room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(cmd.Flags(), map[string]string{
				"listen": "relay.listen",
				"layout": "relay.layout",
			})
			if err != nil {
				return err
			}
			log := debug.New(os.Stderr, cfg.Log.Level).With("relay_id", uuid.NewString())

			layout, err := relay.LoadLayoutFile(cfg.Relay.Layout)
			if err != nil {
				return err
			}
			room, err := relay.NewRoom(layout, log)
			if err != nil {
				return err
			}
			srv := &relay.Server{
				Addr: cfg.Relay.Listen,
				Hub:  relay.NewHub(room, log),
				Log:  log,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("listen", "", "address to listen on (default :2795)")
	cmd.Flags().String("layout", "", "YAML room layout file")
	return cmd
}
