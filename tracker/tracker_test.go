package tracker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/turnfeat/domain"
)

func testDomain() *domain.Domain {
	return domain.New(
		[]string{"greet", "inform"},
		[]string{"cuisine"},
		[]domain.Slot{{Name: "cuisine", Type: domain.SlotText}},
		[]string{"restaurant_form"},
		[]string{"utter_greet", "utter_ask_cuisine"},
		nil,
	)
}

func TestAppliedEventsHandlesRewindsAndRestarts(t *testing.T) {
	events := []Event{
		ActionExecuted{ActionName: domain.ActionListen},
		UserUttered{Intent: "greet"},
		ActionExecuted{ActionName: "utter_greet"},
		Restarted{},
		ActionExecuted{ActionName: domain.ActionListen},
		UserUttered{Intent: "inform"},
		UserUtteranceReverted{},
		UserUttered{Intent: "greet"},
		ActionExecuted{ActionName: "utter_ask_cuisine"},
		ActionReverted{},
	}
	tr := New("s1", events)

	assert.Equal(t, []Event{
		ActionExecuted{ActionName: domain.ActionListen},
		UserUttered{Intent: "greet"},
	}, tr.AppliedEvents())
	assert.Len(t, tr.Events(), len(events))
}

func TestPastStatesOnePerActionPlusFinal(t *testing.T) {
	tr := New("s1", []Event{
		UserUttered{Intent: "greet"},
		ActionExecuted{ActionName: "utter_greet"},
	})
	states := tr.PastStates(testDomain())
	require.Len(t, states, 2)

	first := states[0].Thaw()
	require.NotNil(t, first.User)
	assert.Equal(t, "greet", first.User.Intent)
	assert.Nil(t, first.PrevAction, "the action of a turn must not appear in its own state")

	last := states[1].Thaw()
	require.NotNil(t, last.PrevAction)
	assert.Equal(t, "utter_greet", last.PrevAction.ActionName)
}

func TestPastStatesCategories(t *testing.T) {
	tr := New("s1", []Event{
		ActionExecuted{ActionName: domain.ActionListen},
		UserUttered{Intent: "inform", Text: "thai food", Entities: []Entity{
			{Entity: "cuisine", Value: "thai"},
			{Entity: "cuisine", Value: "thai"},
			{Entity: "location", Value: "here"},
		}},
		SlotSet{Key: "cuisine", Value: "thai"},
		ActiveLoop{Name: "restaurant_form"},
		ActionExecuted{ActionName: "restaurant_form"},
		ActiveLoop{},
		SlotSet{Key: "cuisine"},
		ActionExecuted{ActionText: "Enjoy!"},
	})
	states := tr.PastStates(testDomain())
	require.Len(t, states, 4)

	s := states[1].Thaw()
	assert.Equal(t, &UserSubState{Intent: "inform", Text: "thai food", Entities: []string{"cuisine"}}, s.User)
	assert.Equal(t, &LoopSubState{Name: "restaurant_form"}, s.ActiveLoop)
	assert.Equal(t, map[string][]float64{"cuisine": {1}}, s.Slots)
	assert.True(t, s.PrevActionIsListen())

	final := states[3].Thaw()
	assert.Nil(t, final.ActiveLoop)
	assert.Nil(t, final.Slots)
	assert.Equal(t, &ActionSubState{ActionText: "Enjoy!"}, final.PrevAction)
}

func TestFreezeIsOrderIndependentAndThawIsDeep(t *testing.T) {
	a := &State{Slots: map[string][]float64{"a": {1}, "b": {0, 1}}, User: &UserSubState{Intent: "greet", Entities: []string{"x", "y"}}}
	b := &State{User: &UserSubState{Intent: "greet", Entities: []string{"y", "x"}}, Slots: map[string][]float64{"b": {0, 1}, "a": {1}}}

	fa, fb := FreezeState(a), FreezeState(b)
	assert.Equal(t, fa.Key(), fb.Key())

	thawed := fa.Thaw()
	thawed.Slots["a"][0] = 5
	thawed.User.Intent = "changed"
	assert.Equal(t, 1.0, fa.Thaw().Slots["a"][0])
	assert.Equal(t, "greet", fa.Thaw().User.Intent)
	assert.Equal(t, 1.0, a.Slots["a"][0], "freezing must not alias the input")

	c := &State{User: &UserSubState{Intent: "inform"}}
	assert.NotEqual(t, fa.Key(), FreezeState(c).Key())
	assert.NotEqual(t, FreezeState(&State{}).Key(), FreezeState(&State{PrevAction: &ActionSubState{ActionName: "a"}}).Key())
}

func TestPastStatesIsPure(t *testing.T) {
	tr := New("s1", []Event{UserUttered{Intent: "greet"}, ActionExecuted{ActionName: "utter_greet"}})
	d := testDomain()
	first := tr.PastStates(d)
	first[0].Thaw().User.Intent = "mutated"
	second := tr.PastStates(d)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
	}
}

func TestParseEvents(t *testing.T) {
	events, err := ParseEvents([]map[string]any{
		{"event": "action", "name": "action_listen"},
		{"event": "user", "text": "hi", "intent": "greet", "entities": []any{map[string]any{"entity": "cuisine", "value": "thai"}}},
		{"event": "slot", "name": "cuisine", "value": "thai"},
		{"event": "active_loop", "name": "restaurant_form"},
		{"event": "action", "name": "restaurant_form", "unpredictable": "true"},
		{"event": "rewind"},
		{"event": "undo"},
		{"event": "restart"},
		{"event": "session_started"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Event{
		ActionExecuted{ActionName: "action_listen"},
		UserUttered{Text: "hi", Intent: "greet", Entities: []Entity{{Entity: "cuisine", Value: "thai"}}},
		SlotSet{Key: "cuisine", Value: "thai"},
		ActiveLoop{Name: "restaurant_form"},
		ActionExecuted{ActionName: "restaurant_form", Unpredictable: true},
		UserUtteranceReverted{},
		ActionReverted{},
		Restarted{},
		SessionStarted{},
	}, events)

	_, err = ParseEvents([]map[string]any{{"event": "bot"}})
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}
