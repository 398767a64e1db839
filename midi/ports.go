package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrNoPort is returned when no output port matches.
var ErrNoPort = errors.New("midi: no output port")

// ErrDriverTimeout means the system MIDI service did not answer. On macOS
// this is CoreMIDI hanging; `sudo killall coreaudiod midiserver` fixes it.
var ErrDriverTimeout = errors.New("midi: driver did not respond")

// ScanTimeout bounds port enumeration.
var ScanTimeout = 3 * time.Second

// ListPorts returns the output ports the driver can see.
func ListPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() { ch <- gomidi.GetOutPorts() }()
	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(ScanTimeout):
		return nil, ErrDriverTimeout
	}
}

// FindOut returns the first port whose name contains name, case-insensitively.
func FindOut(name string) (drivers.Out, error) {
	outs, err := ListPorts()
	if err != nil {
		return nil, err
	}
	return match(outs, name)
}

type named interface{ String() string }

func match[P named](ports []P, name string) (P, error) {
	var zero P
	want := strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), want) {
			return p, nil
		}
	}
	if name == "" {
		return zero, ErrNoPort
	}
	return zero, fmt.Errorf("%w matching %q", ErrNoPort, name)
}
