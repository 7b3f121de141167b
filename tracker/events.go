package tracker

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// EventType is the discriminator used in serialized event logs.
type EventType string

const (
	EventUser                  EventType = "user"
	EventAction                EventType = "action"
	EventSlot                  EventType = "slot"
	EventActiveLoop            EventType = "active_loop"
	EventRestarted             EventType = "restart"
	EventSessionStarted        EventType = "session_started"
	EventUserUtteranceReverted EventType = "rewind"
	EventActionReverted        EventType = "undo"
)

// ErrUnknownEvent is returned when an event map has an unsupported type.
var ErrUnknownEvent = errors.New("unknown event type")

// Event is one immutable happening in a conversation.
type Event interface {
	Type() EventType
}

// Entity is an extracted entity of a user message.
type Entity struct {
	Entity string `mapstructure:"entity" json:"entity"`
	Value  any    `mapstructure:"value" json:"value,omitempty"`
}

// UserUttered is a user message with its parse result.
type UserUttered struct {
	Text     string   `mapstructure:"text"`
	Intent   string   `mapstructure:"intent"`
	Entities []Entity `mapstructure:"entities"`
}

// ActionExecuted records a bot action. Unpredictable actions were forced by
// the system (e.g. a form) and could not have been chosen by a policy.
type ActionExecuted struct {
	ActionName    string `mapstructure:"name"`
	ActionText    string `mapstructure:"action_text"`
	Unpredictable bool   `mapstructure:"unpredictable"`
}

// Identifier is the action name, or the action text for end-to-end actions.
func (e ActionExecuted) Identifier() string {
	if e.ActionName != "" {
		return e.ActionName
	}
	return e.ActionText
}

// SlotSet sets a slot; a nil value resets it.
type SlotSet struct {
	Key   string `mapstructure:"name"`
	Value any    `mapstructure:"value"`
}

// ActiveLoop activates a loop; an empty name deactivates the current one.
type ActiveLoop struct {
	Name string `mapstructure:"name"`
}

// Restarted drops the whole history before it.
type Restarted struct{}

// SessionStarted begins a new session and drops the history before it.
type SessionStarted struct{}

// UserUtteranceReverted undoes everything back to the last user message.
type UserUtteranceReverted struct{}

// ActionReverted undoes everything back to the last executed action.
type ActionReverted struct{}

func (UserUttered) Type() EventType           { return EventUser }
func (ActionExecuted) Type() EventType        { return EventAction }
func (SlotSet) Type() EventType               { return EventSlot }
func (ActiveLoop) Type() EventType            { return EventActiveLoop }
func (Restarted) Type() EventType             { return EventRestarted }
func (SessionStarted) Type() EventType        { return EventSessionStarted }
func (UserUtteranceReverted) Type() EventType { return EventUserUtteranceReverted }
func (ActionReverted) Type() EventType        { return EventActionReverted }

// ParseEvent decodes a serialized event map, selecting the concrete type by
// its "event" key.
func ParseEvent(raw map[string]any) (Event, error) {
	typ, _ := raw["event"].(string)
	var ev Event
	var err error
	switch EventType(typ) {
	case EventUser:
		var e UserUttered
		err = decode(raw, &e)
		ev = e
	case EventAction:
		var e ActionExecuted
		err = decode(raw, &e)
		ev = e
	case EventSlot:
		var e SlotSet
		err = decode(raw, &e)
		ev = e
	case EventActiveLoop:
		var e ActiveLoop
		err = decode(raw, &e)
		ev = e
	case EventRestarted:
		ev = Restarted{}
	case EventSessionStarted:
		ev = SessionStarted{}
	case EventUserUtteranceReverted:
		ev = UserUtteranceReverted{}
	case EventActionReverted:
		ev = ActionReverted{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", typ, err)
	}
	return ev, nil
}

// ParseEvents decodes a list of event maps.
func ParseEvents(raw []map[string]any) ([]Event, error) {
	events := make([]Event, 0, len(raw))
	for i, r := range raw {
		ev, err := ParseEvent(r)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
