// Package domain holds the static reference data of an assistant: intents,
// entities, slots, forms and the ordered action list policies predict over.
package domain

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionListen is the action after which the assistant waits for user input.
const ActionListen = "action_listen"

// DefaultActions are always part of a domain and come first in the action list.
var DefaultActions = []string{
	ActionListen,
	"action_restart",
	"action_session_start",
	"action_default_fallback",
	"action_deactivate_loop",
	"action_revert_fallback_events",
	"action_default_ask_affirmation",
	"action_default_ask_rephrase",
	"action_back",
}

// ErrUnknownAction is returned when an action is not registered in the domain.
var ErrUnknownAction = errors.New("action is not registered in the domain")

// Domain is immutable once built; every lookup is a pure function of its input.
type Domain struct {
	Intents     []string
	Entities    []string
	Slots       []Slot
	Forms       []string
	Actions     []string
	ActionTexts []string

	actions     []string
	actionIndex map[string]int
}

// New builds a domain and its action index.
func New(intents, entities []string, slots []Slot, forms, actions, actionTexts []string) *Domain {
	d := &Domain{
		Intents:     intents,
		Entities:    entities,
		Slots:       slots,
		Forms:       forms,
		Actions:     actions,
		ActionTexts: actionTexts,
	}
	d.index()
	return d
}

func (d *Domain) index() {
	groups := [][]string{DefaultActions, d.Actions, d.Forms, d.ActionTexts}
	d.actions = nil
	d.actionIndex = make(map[string]int)
	for _, g := range groups {
		for _, a := range g {
			if _, ok := d.actionIndex[a]; ok || a == "" {
				continue
			}
			d.actionIndex[a] = len(d.actions)
			d.actions = append(d.actions, a)
		}
	}
}

// ActionNamesOrTexts returns the total, stable action order.
func (d *Domain) ActionNamesOrTexts() []string {
	return append([]string(nil), d.actions...)
}

// NumActions is the number of distinct actions, the label space size.
func (d *Domain) NumActions() int {
	return len(d.actions)
}

// IndexForAction returns the label id of an action name or action text.
func (d *Domain) IndexForAction(id string) (int, error) {
	if idx, ok := d.actionIndex[id]; ok {
		return idx, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownAction, id)
}

// Slot returns the slot with the given name.
func (d *Domain) Slot(name string) (Slot, bool) {
	for _, s := range d.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// SlotStates lists the slot feature names "<slot>_<i>" in domain order.
func (d *Domain) SlotStates() []string {
	var out []string
	for _, s := range d.Slots {
		for i := range s.FeatureDimensionality() {
			out = append(out, SlotFeatureName(s.Name, i))
		}
	}
	return out
}

// SlotFeatureName names the i-th feature column of a slot.
func SlotFeatureName(slot string, i int) string {
	return fmt.Sprintf("%s_%d", slot, i)
}

// HasEntity reports whether the entity type is declared.
func (d *Domain) HasEntity(name string) bool {
	for _, e := range d.Entities {
		if e == name {
			return true
		}
	}
	return false
}

type domainFile struct {
	Intents    []any           `yaml:"intents"`
	Entities   []string        `yaml:"entities"`
	Slots      map[string]Slot `yaml:"slots"`
	Forms      any             `yaml:"forms"`
	Actions    []string        `yaml:"actions"`
	Responses  map[string]any  `yaml:"responses"`
	E2EActions []string        `yaml:"e2e_actions"`
}

// Load reads a domain YAML file.
func Load(path string) (*Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain: %w", err)
	}
	return FromYAML(data)
}

// FromYAML parses a domain from YAML. Intents may be plain names or
// single-key maps; forms may be a list or a map; response names starting
// with "utter_" become actions.
func FromYAML(data []byte) (*Domain, error) {
	var f domainFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse domain: %w", err)
	}

	intents := make([]string, 0, len(f.Intents))
	for _, it := range f.Intents {
		switch v := it.(type) {
		case string:
			intents = append(intents, v)
		case map[string]any:
			for name := range v {
				intents = append(intents, name)
			}
		default:
			return nil, fmt.Errorf("parse domain: unsupported intent entry %v", it)
		}
	}

	slotNames := make([]string, 0, len(f.Slots))
	for name := range f.Slots {
		slotNames = append(slotNames, name)
	}
	sort.Strings(slotNames)
	slots := make([]Slot, 0, len(slotNames))
	for _, name := range slotNames {
		s := f.Slots[name]
		s.Name = name
		if s.Type == "" {
			s.Type = SlotText
		}
		slots = append(slots, s)
	}

	var forms []string
	switch v := f.Forms.(type) {
	case nil:
	case []any:
		for _, x := range v {
			forms = append(forms, fmt.Sprint(x))
		}
	case map[string]any:
		for name := range v {
			forms = append(forms, name)
		}
		sort.Strings(forms)
	default:
		return nil, fmt.Errorf("parse domain: unsupported forms section")
	}

	actions := append([]string(nil), f.Actions...)
	var responses []string
	for name := range f.Responses {
		if strings.HasPrefix(name, "utter_") {
			responses = append(responses, name)
		}
	}
	sort.Strings(responses)
	actions = append(actions, responses...)

	return New(intents, f.Entities, slots, forms, actions, f.E2EActions), nil
}
