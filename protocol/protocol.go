// Package protocol defines the jam wire format. Updates are tagged JSON
// objects keyed by variant name ({"SynthSeq":{...}}); the payload-less
// Disconnect is the bare string "Disconnect".
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedMessage wraps every decode failure of untrusted input.
var ErrMalformedMessage = errors.New("malformed message")

// Kind names an update variant on the wire.
type Kind string

const (
	KindConnect           Kind = "Connect"
	KindDisconnect        Kind = "Disconnect"
	KindSynthSeq          Kind = "SynthSeq"
	KindSamplerSeq        Kind = "SamplerSeq"
	KindSynthFilterCutoff Kind = "SynthFilterCutoff"
)

// Update is one of Connect, Disconnect, SynthSeq, SamplerSeq or
// SynthFilterCutoff.
type Update interface {
	Kind() Kind
}

type Connect struct {
	Username string `json:"username"`
}

type Disconnect struct{}

// SynthSeq replaces one column of a synth track. ClickedCellIx is the row the
// user toggled.
type SynthSeq struct {
	SynthIx       int   `json:"synth_ix"`
	BeatIx        int   `json:"beat_ix"`
	ActiveCellIxs []int `json:"active_cell_ixs"`
	ClickedCellIx int   `json:"clicked_cell_ix"`
}

// SamplerSeq replaces one column of the sampler track.
type SamplerSeq struct {
	BeatIx        int   `json:"beat_ix"`
	ActiveCellIxs []int `json:"active_cell_ixs"`
	ClickedCellIx int   `json:"clicked_cell_ix"`
}

type SynthFilterCutoff struct {
	SynthIx int     `json:"synth_ix"`
	Value   float64 `json:"value"`
}

func (Connect) Kind() Kind           { return KindConnect }
func (Disconnect) Kind() Kind        { return KindDisconnect }
func (SynthSeq) Kind() Kind          { return KindSynthSeq }
func (SamplerSeq) Kind() Kind        { return KindSamplerSeq }
func (SynthFilterCutoff) Kind() Kind { return KindSynthFilterCutoff }

// required lists the payload fields each variant must carry.
var required = map[Kind][]string{
	KindConnect:           {"username"},
	KindSynthSeq:          {"synth_ix", "beat_ix", "active_cell_ixs", "clicked_cell_ix"},
	KindSamplerSeq:        {"beat_ix", "active_cell_ixs", "clicked_cell_ix"},
	KindSynthFilterCutoff: {"synth_ix", "value"},
}

// EncodeUpdate serializes an update in tagged form.
func EncodeUpdate(u Update) ([]byte, error) {
	if u == nil {
		return nil, errors.New("nil update")
	}
	if u.Kind() == KindDisconnect {
		return json.Marshal(string(KindDisconnect))
	}
	payload, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", u.Kind(), err)
	}
	return json.Marshal(map[Kind]json.RawMessage{u.Kind(): payload})
}

// DecodeUpdate parses a tagged update.
func DecodeUpdate(data []byte) (Update, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return nil, malformed("%v", err)
		}
		if Kind(tag) != KindDisconnect {
			return nil, malformed("unknown unit variant %q", tag)
		}
		return Disconnect{}, nil
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, malformed("%v", err)
	}
	if len(outer) != 1 {
		return nil, malformed("want exactly one variant, got %d keys", len(outer))
	}
	for tag, payload := range outer {
		return decodeVariant(Kind(tag), payload)
	}
	panic("unreachable")
}

func decodeVariant(kind Kind, payload json.RawMessage) (Update, error) {
	var u Update
	switch kind {
	case KindConnect:
		u = &Connect{}
	case KindDisconnect:
		return Disconnect{}, nil
	case KindSynthSeq:
		u = &SynthSeq{}
	case KindSamplerSeq:
		u = &SamplerSeq{}
	case KindSynthFilterCutoff:
		u = &SynthFilterCutoff{}
	default:
		return nil, malformed("unknown variant %q", kind)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, malformed("%s: %v", kind, err)
	}
	for _, name := range required[kind] {
		if v, ok := fields[name]; !ok || string(v) == "null" {
			return nil, malformed("%s: missing field %q", kind, name)
		}
	}
	if err := json.Unmarshal(payload, u); err != nil {
		return nil, malformed("%s: %v", kind, err)
	}

	switch v := u.(type) {
	case *Connect:
		return *v, nil
	case *SynthSeq:
		return *v, nil
	case *SamplerSeq:
		return *v, nil
	case *SynthFilterCutoff:
		return *v, nil
	}
	return u, nil
}

// Equal reports whether two updates serialize identically. This is the
// acknowledgement test for pending edits.
func Equal(a, b Update) bool {
	ea, err := EncodeUpdate(a)
	if err != nil {
		return false
	}
	eb, err := EncodeUpdate(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
