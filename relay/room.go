package relay

import (
	"fmt"
	"log/slog"

	"jamsesh/debug"
	"jamsesh/protocol"
	"jamsesh/sequencer"
)

// Room is the relay's authoritative copy of one jam.
type Room struct {
	store  *sequencer.Store
	roster []protocol.Client
	log    *slog.Logger
}

func NewRoom(layout Layout, log *slog.Logger) (*Room, error) {
	store, err := layout.Store()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = debug.Discard()
	}
	return &Room{store: store, log: debug.Category(log, "room")}, nil
}

// Apply validates and applies one client update. An error means the update
// must not be relayed.
func (r *Room) Apply(clientID int, u protocol.Update) error {
	switch v := u.(type) {
	case protocol.Connect:
		for i, c := range r.roster {
			if c.ID == clientID {
				r.roster[i].Name = v.Username
				return nil
			}
		}
		r.roster = append(r.roster, protocol.Client{ID: clientID, Name: v.Username})
		return nil
	case protocol.Disconnect:
		for i, c := range r.roster {
			if c.ID == clientID {
				last := len(r.roster) - 1
				r.roster[i] = r.roster[last]
				r.roster = r.roster[:last]
				return nil
			}
		}
		r.log.Info("client left before sending a username", "client_id", clientID)
		return nil
	case protocol.SynthSeq:
		id, err := r.store.SynthTrack(v.SynthIx)
		if err != nil {
			return err
		}
		return r.store.SetColumn(id, v.BeatIx, v.ActiveCellIxs)
	case protocol.SamplerSeq:
		id, ok := r.store.Sampler()
		if !ok {
			return fmt.Errorf("%w: no sampler", sequencer.ErrUnknownTrack)
		}
		return r.store.SetColumn(id, v.BeatIx, v.ActiveCellIxs)
	case protocol.SynthFilterCutoff:
		id, err := r.store.SynthTrack(v.SynthIx)
		if err != nil {
			return err
		}
		if v.Value < 0 || v.Value > 1 {
			return fmt.Errorf("%w: cutoff %v outside [0,1]", protocol.ErrMalformedMessage, v.Value)
		}
		return r.store.SetCutoff(id, v.Value)
	}
	return fmt.Errorf("%w: %T", protocol.ErrMalformedMessage, u)
}

// Roster returns the connected clients in join order, modulo removals.
func (r *Room) Roster() []protocol.Client {
	return append([]protocol.Client(nil), r.roster...)
}

// Sync renders the full state for the client with id you.
func (r *Room) Sync(you int) *protocol.Sync {
	snap := r.store.Snapshot()
	s := &protocol.Sync{
		NumSynthNoteRows:   snap.SynthRows,
		NumSamplerNoteRows: snap.SamplerRows,
		SynthSequences:     make([][][]int, 0, len(snap.Synths)),
		SynthCutoffs:       append([]float64{}, snap.Cutoffs...),
		ConnectedClients:   r.Roster(),
		YourClientID:       &you,
	}
	for _, g := range snap.Synths {
		s.SynthSequences = append(s.SynthSequences, gridRows(g))
	}
	s.SamplerSequence = gridRows(snap.Sampler)
	if s.ConnectedClients == nil {
		s.ConnectedClients = []protocol.Client{}
	}
	return s
}

func gridRows(g sequencer.Grid) [][]int {
	out := make([][]int, len(g))
	for i, c := range g {
		out[i] = []int(c)
	}
	return out
}
