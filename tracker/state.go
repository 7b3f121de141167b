package tracker

import (
	"sort"
	"strconv"
	"strings"

	"github.com/happyhackingspace/turnfeat/domain"
)

// UserSubState is the user category of a turn.
type UserSubState struct {
	Intent   string   `json:"intent,omitempty"`
	Text     string   `json:"text,omitempty"`
	Entities []string `json:"entities,omitempty"`
}

// ActionSubState is the previous-action category of a turn.
type ActionSubState struct {
	ActionName string `json:"action_name,omitempty"`
	ActionText string `json:"action_text,omitempty"`
}

// LoopSubState is the active-loop category of a turn.
type LoopSubState struct {
	Name string `json:"name"`
}

// State is a snapshot of one dialogue turn. Absent categories are nil.
type State struct {
	User       *UserSubState        `json:"user,omitempty"`
	PrevAction *ActionSubState      `json:"prev_action,omitempty"`
	ActiveLoop *LoopSubState        `json:"active_loop,omitempty"`
	Slots      map[string][]float64 `json:"slots,omitempty"`
}

// IsEmpty reports whether no category is set.
func (s *State) IsEmpty() bool {
	return s == nil || (s.User == nil && s.PrevAction == nil && s.ActiveLoop == nil && len(s.Slots) == 0)
}

// PrevActionIsListen reports whether the turn follows action_listen, i.e.
// whether its user category is real user input.
func (s *State) PrevActionIsListen() bool {
	return s != nil && s.PrevAction != nil && s.PrevAction.ActionName == domain.ActionListen
}

// Copy returns a deep copy.
func (s *State) Copy() *State {
	if s == nil {
		return nil
	}
	out := &State{}
	if s.User != nil {
		u := *s.User
		u.Entities = append([]string(nil), s.User.Entities...)
		out.User = &u
	}
	if s.PrevAction != nil {
		a := *s.PrevAction
		out.PrevAction = &a
	}
	if s.ActiveLoop != nil {
		l := *s.ActiveLoop
		out.ActiveLoop = &l
	}
	if s.Slots != nil {
		out.Slots = make(map[string][]float64, len(s.Slots))
		for k, v := range s.Slots {
			out.Slots[k] = append([]float64(nil), v...)
		}
	}
	return out
}

// FrozenState is the immutable, canonical form of a State. Two states with
// equal content have equal keys regardless of map iteration order.
type FrozenState struct {
	state *State
	key   string
}

// FreezeState canonicalizes s. The frozen value owns a private copy.
func FreezeState(s *State) FrozenState {
	cp := s.Copy()
	return FrozenState{state: cp, key: canonicalKey(cp)}
}

// Key returns the canonical encoding used for hashing and equality.
func (f FrozenState) Key() string { return f.key }

// Thaw returns a fresh, mutable deep copy.
func (f FrozenState) Thaw() *State {
	if f.state == nil {
		return &State{}
	}
	return f.state.Copy()
}

func canonicalKey(s *State) string {
	if s == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	if s.ActiveLoop != nil {
		b.WriteString("active_loop:")
		b.WriteString(strconv.Quote(s.ActiveLoop.Name))
		b.WriteByte(';')
	}
	if s.PrevAction != nil {
		b.WriteString("prev_action:")
		writePair(&b, "action_name", s.PrevAction.ActionName)
		writePair(&b, "action_text", s.PrevAction.ActionText)
		b.WriteByte(';')
	}
	if len(s.Slots) > 0 {
		names := make([]string, 0, len(s.Slots))
		for k := range s.Slots {
			names = append(names, k)
		}
		sort.Strings(names)
		b.WriteString("slots:")
		for _, n := range names {
			b.WriteString(strconv.Quote(n))
			b.WriteByte('(')
			for i, v := range s.Slots[n] {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			}
			b.WriteByte(')')
		}
		b.WriteByte(';')
	}
	if s.User != nil {
		b.WriteString("user:")
		ents := append([]string(nil), s.User.Entities...)
		sort.Strings(ents)
		if len(ents) > 0 {
			b.WriteString("entities(")
			for i, e := range ents {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.Quote(e))
			}
			b.WriteByte(')')
		}
		writePair(&b, "intent", s.User.Intent)
		writePair(&b, "text", s.User.Text)
		b.WriteByte(';')
	}
	b.WriteByte('}')
	return b.String()
}

func writePair(b *strings.Builder, k, v string) {
	if v == "" {
		return
	}
	b.WriteString(k)
	b.WriteByte('=')
	b.WriteString(strconv.Quote(v))
}
