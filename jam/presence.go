package jam

import (
	"errors"
	"fmt"
	"sort"

	"jamsesh/protocol"
	"jamsesh/sequencer"
)

// ErrUnknownParticipant is returned for ids that are not in the roster.
var ErrUnknownParticipant = errors.New("unknown participant")

// Touch is the last cell a participant edited. Beat and Row are -1 for
// cutoff edits.
type Touch struct {
	Track sequencer.TrackID
	Beat  int
	Row   int
}

// Participant is one connected user.
type Participant struct {
	ID          int
	Name        string
	LastTouched *Touch
}

// Presence maps participant ids to names and last touches. It is read by the
// UI for highlights and drives nothing else.
type Presence struct {
	byID map[int]*Participant
}

func NewPresence() *Presence {
	return &Presence{byID: make(map[int]*Participant)}
}

// Add inserts or renames a participant.
func (p *Presence) Add(id int, name string) {
	if existing, ok := p.byID[id]; ok {
		existing.Name = name
		return
	}
	p.byID[id] = &Participant{ID: id, Name: name}
}

func (p *Presence) Remove(id int) error {
	if _, ok := p.byID[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownParticipant, id)
	}
	delete(p.byID, id)
	return nil
}

// Touch overwrites the last-touched cell of a participant.
func (p *Presence) Touch(id int, t Touch) error {
	part, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownParticipant, id)
	}
	part.LastTouched = &t
	return nil
}

// Reset replaces the roster; last touches are forgotten.
func (p *Presence) Reset(roster []protocol.Client) {
	p.byID = make(map[int]*Participant, len(roster))
	for _, c := range roster {
		p.Add(c.ID, c.Name)
	}
}

func (p *Presence) Get(id int) (Participant, bool) {
	part, ok := p.byID[id]
	if !ok {
		return Participant{}, false
	}
	return copyParticipant(part), true
}

func (p *Presence) Len() int { return len(p.byID) }

// List returns copies of every participant ordered by id.
func (p *Presence) List() []Participant {
	out := make([]Participant, 0, len(p.byID))
	for _, part := range p.byID {
		out = append(out, copyParticipant(part))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyParticipant(p *Participant) Participant {
	c := *p
	if p.LastTouched != nil {
		t := *p.LastTouched
		c.LastTouched = &t
	}
	return c
}
