// Package cli holds the jamsesh commands.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"jamsesh/config"
)

type app struct {
	cfgFile string
	v       *viper.Viper
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "jamsesh",
		Short: "Collaborative step sequencer for the terminal",
		Long: `jamsesh is a grid step sequencer that several people edit at once.
One relay holds the room; every client plays its own copy of the grid
through a local MIDI output.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			v, err := config.NewViper(a.cfgFile)
			if err != nil {
				return err
			}
			a.v = v
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $HOME/.config/jamsesh/config.yaml)")

	root.AddCommand(newJoinCmd(a), newRelayCmd(a), newPortsCmd())
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// load binds flags to config keys and decodes the result.
func (a *app) load(flags *pflag.FlagSet, keys map[string]string) (*config.Config, error) {
	for flag, key := range keys {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, err
		}
	}
	return config.Load(a.v)
}
