package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"jamsesh/midi"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI output ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outs, err := midi.ListPorts()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(outs) == 0 {
				fmt.Fprintln(w, "no MIDI output ports")
				return nil
			}
			fmt.Fprintln(w, "=== MIDI Output Ports ===")
			for i, p := range outs {
				fmt.Fprintf(w, "  %d: %s\n", i, p.String())
			}
			return nil
		},
	}
}
