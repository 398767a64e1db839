// Command miditest checks a MIDI output the way jamsesh drives it.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"jamsesh/midi"
	"jamsesh/sequencer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "play":
		port := ""
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		err = play(port)
	case "poll":
		pollPorts()
	default:
		usage()
	}
	if err != nil {
		fmt.Println("Error:", err)
		if errors.Is(err, midi.ErrDriverTimeout) {
			fmt.Println("Fix: sudo killall coreaudiod midiserver")
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list         - List MIDI output ports")
	fmt.Println("  play [port]  - Play a scale on each synth channel, then the samples")
	fmt.Println("  poll         - Poll for port changes")
}

func listPorts() error {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Printf("(waiting up to %s...)\n", midi.ScanTimeout)
	outs, err := midi.ListPorts()
	if err != nil {
		return err
	}
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	return nil
}

func play(port string) error {
	out, err := midi.Open(port, midi.OutputConfig{SamplerChannel: midi.DefaultSamplerChannel}, nil)
	if err != nil {
		return err
	}
	defer out.Close()

	const rows = 14
	for track := sequencer.TrackID(0); track < 2; track++ {
		fmt.Printf("Synth %d: rising scale\n", track+1)
		out.SetCutoff(track, sequencer.DefaultCutoff)
		for row := rows - 1; row >= 0; row-- {
			f, err := sequencer.RowFrequency(row, rows, sequencer.DefaultNoteOffset)
			if err != nil {
				return err
			}
			out.TriggerVoices(track, []float64{f})
			time.Sleep(150 * time.Millisecond)
		}
		out.Silence()
	}

	fmt.Println("Sampler: kick, snare")
	for i := 0; i < 4; i++ {
		out.TriggerSample(i % 2)
		time.Sleep(250 * time.Millisecond)
	}
	fmt.Println("Done!")
	return nil
}

func pollPorts() {
	fmt.Println("Polling for port changes every 2 seconds. Ctrl+C to exit.")
	last := ""
	for {
		outs, err := midi.ListPorts()
		if err != nil {
			fmt.Println("  scan:", err)
		}
		var names []string
		for _, p := range outs {
			names = append(names, p.String())
		}
		if current := strings.Join(names, ","); current != last {
			fmt.Printf("\n[%s] Port change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Outputs: %v\n", names)
			last = current
		}
		time.Sleep(2 * time.Second)
	}
}
