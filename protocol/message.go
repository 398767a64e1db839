package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message is an inbound frame on the client side: *Sync or Relayed.
type Message interface {
	isMessage()
}

// Client is a roster entry, encoded as the pair [id, name].
type Client struct {
	ID   int
	Name string
}

func (c Client) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.ID, c.Name})
}

func (c *Client) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("roster entry has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.ID); err != nil {
		return fmt.Errorf("roster id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &c.Name); err != nil {
		return fmt.Errorf("roster name: %w", err)
	}
	return nil
}

// Sync is the full room state sent to a client right after it connects.
// YourClientID is set by relays that announce the receiver's id; older relays
// leave it out.
type Sync struct {
	NumSynthNoteRows   int       `json:"num_synth_note_rows"`
	NumSamplerNoteRows int       `json:"num_sampler_note_rows"`
	SynthSequences     [][][]int `json:"synth_sequences"`
	SynthCutoffs       []float64 `json:"synth_cutoffs"`
	SamplerSequence    [][]int   `json:"sampler_sequence"`
	ConnectedClients   []Client  `json:"connected_clients"`
	YourClientID       *int      `json:"your_client_id,omitempty"`
}

func (*Sync) isMessage() {}

// Relayed is an update stamped with the id of the client that sent it.
type Relayed struct {
	ClientID int
	Update   Update
}

func (Relayed) isMessage() {}

type relayedWire struct {
	ClientID *int            `json:"client_id"`
	Update   json.RawMessage `json:"update"`
}

func (r Relayed) MarshalJSON() ([]byte, error) {
	u, err := EncodeUpdate(r.Update)
	if err != nil {
		return nil, err
	}
	id := r.ClientID
	return json.Marshal(relayedWire{ClientID: &id, Update: u})
}

// EncodeMessage serializes a relay-to-client frame.
func EncodeMessage(m Message) ([]byte, error) {
	switch v := m.(type) {
	case *Sync:
		return json.Marshal(v)
	case Relayed:
		return json.Marshal(v)
	case nil:
		return nil, errors.New("nil message")
	}
	return nil, fmt.Errorf("unsupported message %T", m)
}

// DecodeMessage parses a relay-to-client frame.
func DecodeMessage(data []byte) (Message, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, malformed("%v", err)
	}
	if _, ok := keys["client_id"]; ok {
		var w relayedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, malformed("relayed: %v", err)
		}
		if w.ClientID == nil || w.Update == nil {
			return nil, malformed("relayed: missing client_id or update")
		}
		u, err := DecodeUpdate(w.Update)
		if err != nil {
			return nil, err
		}
		return Relayed{ClientID: *w.ClientID, Update: u}, nil
	}
	for _, name := range []string{"num_synth_note_rows", "num_sampler_note_rows", "synth_sequences", "synth_cutoffs", "sampler_sequence", "connected_clients"} {
		if _, ok := keys[name]; !ok {
			return nil, malformed("unrecognised frame: missing %q", name)
		}
	}
	var s Sync
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, malformed("sync: %v", err)
	}
	return &s, nil
}
