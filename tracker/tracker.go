// Package tracker models a conversation as an append-only event log and
// derives the per-turn state snapshots policies are trained on.
package tracker

import (
	"sort"

	"github.com/happyhackingspace/turnfeat/domain"
)

// DialogueStateTracker is the event history of one conversation.
// It is read-only for featurization.
type DialogueStateTracker struct {
	SenderID string
	events   []Event
}

// New creates a tracker over a copy of events.
func New(senderID string, events []Event) *DialogueStateTracker {
	return &DialogueStateTracker{
		SenderID: senderID,
		events:   append([]Event(nil), events...),
	}
}

// Events returns the raw event log.
func (t *DialogueStateTracker) Events() []Event {
	return append([]Event(nil), t.events...)
}

// AppliedEvents returns the events still in effect after restarts, session
// starts and rewinds are applied.
func (t *DialogueStateTracker) AppliedEvents() []Event {
	var applied []Event
	for _, ev := range t.events {
		switch ev.(type) {
		case Restarted, SessionStarted:
			applied = nil
		case UserUtteranceReverted:
			applied = undoTillPrevious[UserUttered](applied)
		case ActionReverted:
			applied = undoTillPrevious[ActionExecuted](applied)
		default:
			applied = append(applied, ev)
		}
	}
	return applied
}

// undoTillPrevious drops events from the end up to and including the last
// event of type T.
func undoTillPrevious[T Event](events []Event) []Event {
	for i := len(events) - 1; i >= 0; i-- {
		if _, ok := events[i].(T); ok {
			return events[:i]
		}
	}
	return nil
}

// PastStates returns one frozen state per turn: the state before every
// executed action plus the state after the last event.
func (t *DialogueStateTracker) PastStates(d *domain.Domain) []FrozenState {
	r := newReplay(d)
	var states []FrozenState
	for _, ev := range t.AppliedEvents() {
		if _, ok := ev.(ActionExecuted); ok {
			states = append(states, FreezeState(r.state()))
		}
		r.apply(ev)
	}
	return append(states, FreezeState(r.state()))
}

// FreezeCurrentState canonicalizes a state for hashing.
func (t *DialogueStateTracker) FreezeCurrentState(s *State) FrozenState {
	return FreezeState(s)
}

// replay accumulates the per-turn view while walking applied events.
type replay struct {
	domain        *domain.Domain
	latestMessage *UserUttered
	latestAction  *ActionExecuted
	activeLoop    string
	slots         map[string]any
}

func newReplay(d *domain.Domain) *replay {
	r := &replay{domain: d, slots: make(map[string]any)}
	for _, s := range d.Slots {
		if s.InitialValue != nil {
			r.slots[s.Name] = s.InitialValue
		}
	}
	return r
}

func (r *replay) apply(ev Event) {
	switch e := ev.(type) {
	case UserUttered:
		r.latestMessage = &e
	case ActionExecuted:
		r.latestAction = &e
	case SlotSet:
		if e.Value == nil {
			delete(r.slots, e.Key)
		} else {
			r.slots[e.Key] = e.Value
		}
	case ActiveLoop:
		r.activeLoop = e.Name
	}
}

func (r *replay) state() *State {
	s := &State{}
	if m := r.latestMessage; m != nil && (m.Intent != "" || m.Text != "") {
		u := &UserSubState{Intent: m.Intent, Text: m.Text}
		seen := make(map[string]bool)
		for _, ent := range m.Entities {
			if seen[ent.Entity] || !r.domain.HasEntity(ent.Entity) {
				continue
			}
			seen[ent.Entity] = true
			u.Entities = append(u.Entities, ent.Entity)
		}
		sort.Strings(u.Entities)
		s.User = u
	}
	if a := r.latestAction; a != nil && a.Identifier() != "" {
		if a.ActionName != "" {
			s.PrevAction = &ActionSubState{ActionName: a.ActionName}
		} else {
			s.PrevAction = &ActionSubState{ActionText: a.ActionText}
		}
	}
	if r.activeLoop != "" {
		s.ActiveLoop = &LoopSubState{Name: r.activeLoop}
	}
	for _, slot := range r.domain.Slots {
		v, ok := r.slots[slot.Name]
		if !ok {
			continue
		}
		feat := slot.AsFeature(v)
		if !anyNonZero(feat) {
			continue
		}
		if s.Slots == nil {
			s.Slots = make(map[string][]float64)
		}
		s.Slots[slot.Name] = feat
	}
	return s
}

func anyNonZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}
