package protocol

import (
	"errors"
	"testing"
)

func TestEncodeUpdateWireShape(t *testing.T) {
	tests := []struct {
		name string
		in   Update
		want string
	}{
		{"connect", Connect{Username: "ada"}, `{"Connect":{"username":"ada"}}`},
		{"disconnect", Disconnect{}, `"Disconnect"`},
		{"synth", SynthSeq{SynthIx: 0, BeatIx: 2, ActiveCellIxs: []int{5, -1}, ClickedCellIx: 5},
			`{"SynthSeq":{"synth_ix":0,"beat_ix":2,"active_cell_ixs":[5,-1],"clicked_cell_ix":5}}`},
		{"sampler", SamplerSeq{BeatIx: 3, ActiveCellIxs: []int{-1, 1}, ClickedCellIx: 1},
			`{"SamplerSeq":{"beat_ix":3,"active_cell_ixs":[-1,1],"clicked_cell_ix":1}}`},
		{"cutoff", SynthFilterCutoff{SynthIx: 1, Value: 0.5}, `{"SynthFilterCutoff":{"synth_ix":1,"value":0.5}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeUpdate(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %s\nwant %s", got, tt.want)
			}
			back, err := DecodeUpdate(got)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !Equal(back, tt.in) {
				t.Fatalf("decoded %#v", back)
			}
		})
	}
}

func TestDecodeUpdateRejects(t *testing.T) {
	inputs := map[string]string{
		"not json":        `{`,
		"unknown unit":    `"Reconnect"`,
		"unknown variant": `{"Teleport":{}}`,
		"two variants":    `{"Connect":{"username":"a"},"Disconnect":null}`,
		"missing field":   `{"SynthSeq":{"synth_ix":0,"beat_ix":2,"clicked_cell_ix":5}}`,
		"null field":      `{"SamplerSeq":{"beat_ix":null,"active_cell_ixs":[1],"clicked_cell_ix":1}}`,
		"wrong type":      `{"SynthFilterCutoff":{"synth_ix":"zero","value":1}}`,
		"array":           `[1,2]`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeUpdate([]byte(in)); !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestEqualIsSerializedEquality(t *testing.T) {
	a := SynthSeq{SynthIx: 0, BeatIx: 2, ActiveCellIxs: []int{5, -1}, ClickedCellIx: 5}
	b := SynthSeq{SynthIx: 0, BeatIx: 2, ActiveCellIxs: []int{5, -1}, ClickedCellIx: 5}
	if !Equal(a, b) {
		t.Fatal("identical updates should be equal")
	}
	b.ActiveCellIxs = []int{-1, 5}
	if Equal(a, b) {
		t.Fatal("slot order matters")
	}
	if Equal(SynthFilterCutoff{SynthIx: 0, Value: 0.5}, SynthFilterCutoff{SynthIx: 0, Value: 0.25}) {
		t.Fatal("different cutoff values should differ")
	}
}
