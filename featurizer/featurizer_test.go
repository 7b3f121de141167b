package featurizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/turnfeat/domain"
	"github.com/happyhackingspace/turnfeat/features"
	"github.com/happyhackingspace/turnfeat/interpreter"
	"github.com/happyhackingspace/turnfeat/tracker"
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

// greetStory has four turns and three predictable actions.
func greetStory(sender string) *tracker.DialogueStateTracker {
	return tracker.New(sender, []tracker.Event{
		tracker.ActionExecuted{ActionName: domain.ActionListen},
		tracker.UserUttered{Intent: "greet", Text: "hello there"},
		tracker.ActionExecuted{ActionName: "utter_greet"},
		tracker.ActionExecuted{ActionName: domain.ActionListen},
	})
}

func TestFullDialogueDropsLastState(t *testing.T) {
	states, actions, err := (&FullDialogue{}).TrainingStatesAndActions(
		[]*tracker.DialogueStateTracker{greetStory("a")}, testDomain(), Hooks{})
	require.NoError(t, err)
	require.Len(t, states, 1)

	total := len(greetStory("a").PastStates(testDomain()))
	assert.Len(t, states[0], total-1)
	assert.Equal(t, [][]string{{domain.ActionListen, "utter_greet", domain.ActionListen}}, actions)
}

func TestFullDialogueSingleTurnScenario(t *testing.T) {
	d := testDomain()
	tr := tracker.New("s", []tracker.Event{
		tracker.UserUttered{Intent: "greet"},
		tracker.ActionExecuted{ActionName: "utter_greet"},
	})
	tf := New(NewSingleStateFeaturizer(), &FullDialogue{})
	feats, labels, err := tf.FeaturizeTrackers([]*tracker.DialogueStateTracker{tr}, d, interpreter.Noop{})
	require.NoError(t, err)

	require.Len(t, feats, 1)
	assert.Len(t, feats[0], 1)
	want, err := d.IndexForAction("utter_greet")
	require.NoError(t, err)
	assert.Equal(t, [][]int{{want}}, labels)
}

func TestFullDialogueUnpredictable(t *testing.T) {
	d := testDomain()
	first := tracker.New("first", []tracker.Event{
		tracker.ActionExecuted{ActionName: "restaurant_form", Unpredictable: true},
		tracker.UserUttered{Intent: "inform"},
		tracker.ActionExecuted{ActionName: domain.ActionListen},
	})
	states, actions, err := (&FullDialogue{}).TrainingStatesAndActions([]*tracker.DialogueStateTracker{first}, d, Hooks{})
	require.NoError(t, err)
	assert.Len(t, states[0], 1, "first state dropped, last state removed")
	assert.Equal(t, []string{domain.ActionListen}, actions[0])

	twice := tracker.New("twice", []tracker.Event{
		tracker.ActionExecuted{ActionName: "restaurant_form", Unpredictable: true},
		tracker.ActionExecuted{ActionName: domain.ActionListen},
		tracker.ActionExecuted{ActionName: "restaurant_form", Unpredictable: true},
	})
	_, _, err = (&FullDialogue{}).TrainingStatesAndActions([]*tracker.DialogueStateTracker{first, twice}, d, Hooks{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMultipleUnpredictable))
	assert.Contains(t, err.Error(), "twice")
	assert.Contains(t, err.Error(), "check your story files")
}

func TestFullDialogueNoPredictableActions(t *testing.T) {
	tr := tracker.New("empty", []tracker.Event{tracker.UserUttered{Intent: "greet"}})
	states, actions, err := (&FullDialogue{}).TrainingStatesAndActions([]*tracker.DialogueStateTracker{tr}, testDomain(), Hooks{})
	require.NoError(t, err)
	assert.Empty(t, states[0])
	assert.Empty(t, actions[0])
}

func TestMaxHistoryWindows(t *testing.T) {
	states, actions, err := NewMaxHistory(2, true).TrainingStatesAndActions(
		[]*tracker.DialogueStateTracker{greetStory("a")}, testDomain(), Hooks{})
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Len(t, states[0], 1)
	assert.Len(t, states[1], 2)
	assert.Len(t, states[2], 2)
	assert.Equal(t, [][]string{{domain.ActionListen}, {"utter_greet"}, {domain.ActionListen}}, actions)

	last := states[2][1]
	require.NotNil(t, last.PrevAction)
	assert.Equal(t, "utter_greet", last.PrevAction.ActionName)
}

func TestMaxHistoryUnlimitedKeepsPrefix(t *testing.T) {
	states, _, err := NewMaxHistory(0, false).TrainingStatesAndActions(
		[]*tracker.DialogueStateTracker{greetStory("a")}, testDomain(), Hooks{})
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Len(t, states[2], 3)
}

func TestMaxHistoryDeduplication(t *testing.T) {
	trackers := []*tracker.DialogueStateTracker{greetStory("a"), greetStory("b")}
	d := testDomain()

	states, actions, err := NewMaxHistory(2, true).TrainingStatesAndActions(trackers, d, Hooks{})
	require.NoError(t, err)
	assert.Len(t, states, 3)
	assert.Len(t, actions, 3)

	states, actions, err = NewMaxHistory(2, false).TrainingStatesAndActions(trackers, d, Hooks{})
	require.NoError(t, err)
	assert.Len(t, states, 6)
	assert.Len(t, actions, 6)
}

func TestMaxHistoryWindowsDoNotAlias(t *testing.T) {
	states, _, err := NewMaxHistory(0, false).TrainingStatesAndActions(
		[]*tracker.DialogueStateTracker{greetStory("a")}, testDomain(), Hooks{})
	require.NoError(t, err)
	states[1][1].User.Intent = "changed"
	assert.Equal(t, "greet", states[2][1].User.Intent)
}

func TestMaxHistoryPredictionStripsText(t *testing.T) {
	d := testDomain()
	out := NewMaxHistory(2, true).PredictionStates([]*tracker.DialogueStateTracker{greetStory("a")}, d)
	require.Len(t, out, 1)
	require.Len(t, out[0], 2)
	for _, s := range out[0] {
		require.NotNil(t, s.User)
		assert.Empty(t, s.User.Text)
		assert.Equal(t, "greet", s.User.Intent)
	}

	full := (&FullDialogue{}).PredictionStates([]*tracker.DialogueStateTracker{greetStory("a")}, d)
	assert.Len(t, full[0], 4)
	assert.Equal(t, "hello there", full[0][3].User.Text)
}

func TestHashExample(t *testing.T) {
	s := &tracker.State{User: &tracker.UserSubState{Intent: "greet"}}
	same := &tracker.State{User: &tracker.UserSubState{Intent: "greet"}}

	assert.Equal(t, HashExample([]*tracker.State{s}, "a"), HashExample([]*tracker.State{same}, "a"))
	assert.NotEqual(t, HashExample([]*tracker.State{s}, "a"), HashExample([]*tracker.State{s}, "b"))
	assert.NotEqual(t, HashExample([]*tracker.State{nil, s}, "a"), HashExample([]*tracker.State{{}, s}, "a"))
	assert.NotEqual(t, HashExample([]*tracker.State{nil, s}, "a"), HashExample([]*tracker.State{s}, "a"))
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy(FullDialogueName, 0, false)
	require.NoError(t, err)
	assert.IsType(t, &FullDialogue{}, s)

	s, err = NewStrategy(MaxHistoryName, 5, true)
	require.NoError(t, err)
	assert.Equal(t, &MaxHistory{MaxHistory: 5, RemoveDuplicates: true}, s)

	_, err = NewStrategy("sliding", 0, false)
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}

func TestFeaturizeTrackersRequiresStateFeaturizer(t *testing.T) {
	tf := New(nil, nil)
	_, _, err := tf.FeaturizeTrackers([]*tracker.DialogueStateTracker{greetStory("a")}, testDomain(), nil)
	assert.True(t, errors.Is(err, ErrNoStateFeaturizer))
	_, err = tf.CreateStateFeatures(nil, testDomain(), nil)
	assert.True(t, errors.Is(err, ErrNoStateFeaturizer))
}

func TestFeaturizeTrackersUnknownAction(t *testing.T) {
	tr := tracker.New("s", []tracker.Event{tracker.ActionExecuted{ActionName: "utter_unknown"}})
	_, _, err := New(NewSingleStateFeaturizer(), nil).FeaturizeTrackers([]*tracker.DialogueStateTracker{tr}, testDomain(), nil)
	assert.True(t, errors.Is(err, domain.ErrUnknownAction))
}

type countingObserver struct {
	trackers, examples, duplicates int
}

func (o *countingObserver) TrackerProcessed(string) { o.trackers++ }
func (o *countingObserver) ExampleCreated(string)   { o.examples++ }
func (o *countingObserver) DuplicateSkipped(string) { o.duplicates++ }

type recordingProgress struct {
	total, steps int
	finished     bool
}

func (p *recordingProgress) Start(total int) { p.total = total }
func (p *recordingProgress) Step(string)     { p.steps++ }
func (p *recordingProgress) Finish()         { p.finished = true }

func TestHooksAreObservational(t *testing.T) {
	trackers := []*tracker.DialogueStateTracker{greetStory("a"), greetStory("b")}
	d := testDomain()

	plain := New(NewSingleStateFeaturizer(), NewMaxHistory(2, true))
	wantFeats, wantLabels, err := plain.FeaturizeTrackers(trackers, d, nil)
	require.NoError(t, err)

	obs := &countingObserver{}
	prog := &recordingProgress{}
	hooked := New(NewSingleStateFeaturizer(), NewMaxHistory(2, true))
	hooked.Hooks = Hooks{Progress: prog, Observer: obs}
	feats, labels, err := hooked.FeaturizeTrackers(trackers, d, nil)
	require.NoError(t, err)

	assert.Equal(t, wantFeats, feats)
	assert.Equal(t, wantLabels, labels)
	assert.Equal(t, 2, obs.trackers)
	assert.Equal(t, 3, obs.examples)
	assert.Equal(t, 3, obs.duplicates)
	assert.Equal(t, 2, prog.total)
	assert.Equal(t, 2, prog.steps)
	assert.True(t, prog.finished)
}

func TestEncodeState(t *testing.T) {
	d := testDomain()
	sf := NewSingleStateFeaturizer()
	sf.PrepareFromDomain(d)

	listen := &tracker.State{
		User:       &tracker.UserSubState{Intent: "inform", Entities: []string{"cuisine"}},
		PrevAction: &tracker.ActionSubState{ActionName: domain.ActionListen},
		ActiveLoop: &tracker.LoopSubState{Name: "restaurant_form"},
		Slots:      map[string][]float64{"cuisine": {1}},
	}
	out := sf.EncodeState(listen, interpreter.Noop{})
	assert.Equal(t, []string{
		features.ActionName, features.ActiveLoop, features.Entities, features.Intent, features.Slots,
	}, out.Attributes())

	intent := out[features.Intent][0]
	assert.True(t, intent.IsSparse())
	assert.Equal(t, features.Sentence, intent.Kind)
	rows, cols := intent.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 1.0, intent.Sparse().At(0, 1))

	listenID, err := d.IndexForAction(domain.ActionListen)
	require.NoError(t, err)
	action := out[features.ActionName][0]
	assert.Equal(t, d.NumActions(), action.Cols())
	assert.Equal(t, 1.0, action.Sparse().At(0, listenID))

	assert.Equal(t, 1.0, out[features.Slots][0].Sparse().At(0, 0))
	assert.Equal(t, 1.0, out[features.ActiveLoop][0].Sparse().At(0, 0))

	bot := &tracker.State{
		User:       &tracker.UserSubState{Intent: "inform"},
		PrevAction: &tracker.ActionSubState{ActionName: "utter_greet"},
	}
	out = sf.EncodeState(bot, nil)
	assert.Equal(t, []string{features.ActionName}, out.Attributes(), "user input is only encoded after action_listen")

	assert.Empty(t, sf.EncodeState(&tracker.State{}, nil))
}

func TestEncodeStateWithInterpreter(t *testing.T) {
	d := testDomain()
	sf := NewSingleStateFeaturizer()
	sf.PrepareFromDomain(d)

	cfg := interpreter.DefaultConfig()
	cfg.FeaturizeNames = true
	bow := interpreter.NewBagOfWords(cfg)
	bow.Train([]string{"hello there", "enjoy your meal"}, []string{"greet", "utter_greet"})

	out := sf.EncodeState(&tracker.State{
		User:       &tracker.UserSubState{Intent: "greet", Text: "hello there"},
		PrevAction: &tracker.ActionSubState{ActionName: domain.ActionListen},
	}, bow)

	require.Len(t, out[features.Text], 2)
	assert.Equal(t, features.Sequence, out[features.Text][0].Kind)

	require.Len(t, out[features.Intent], 1)
	assert.Equal(t, features.Sentence, out[features.Intent][0].Kind, "name sequences are summed to sentences")
	assert.Equal(t, bow.VocabSize(), out[features.Intent][0].Cols())

	require.Len(t, out[features.ActionName], 1)
	assert.Equal(t, features.Sentence, out[features.ActionName][0].Kind)

	text := sf.EncodeState(&tracker.State{PrevAction: &tracker.ActionSubState{ActionText: "enjoy your meal"}}, bow)
	assert.Equal(t, []string{features.ActionText}, text.Attributes())
}

func TestEncodeStateNameWidthIsStable(t *testing.T) {
	d := domain.New([]string{"hello", "greet", "the"}, nil, nil, nil, []string{"utter_hello"}, nil)
	sf := NewSingleStateFeaturizer()
	sf.PrepareFromDomain(d)

	cfg := interpreter.DefaultConfig()
	cfg.FeaturizeNames = true
	cfg.MinDF = 2
	cfg.StopWords = true
	bow := interpreter.NewBagOfWords(cfg)
	bow.Train([]string{"hello you", "hello me"}, append(append([]string(nil), d.Intents...), d.ActionNamesOrTexts()...))

	cols := map[string][]int{}
	for _, intent := range d.Intents {
		out := sf.EncodeState(&tracker.State{
			User:       &tracker.UserSubState{Intent: intent},
			PrevAction: &tracker.ActionSubState{ActionName: domain.ActionListen},
		}, bow)
		for _, attr := range []string{features.Intent, features.ActionName} {
			require.Len(t, out[attr], 1, "%s for intent %q", attr, intent)
			cols[attr] = append(cols[attr], out[attr][0].Cols())
		}
	}
	out := sf.EncodeState(&tracker.State{PrevAction: &tracker.ActionSubState{ActionName: "utter_hello"}}, bow)
	require.Len(t, out[features.ActionName], 1)
	cols[features.ActionName] = append(cols[features.ActionName], out[features.ActionName][0].Cols())

	for attr, widths := range cols {
		for _, w := range widths {
			assert.Equal(t, bow.VocabSize(), w, "%s widths %v", attr, widths)
		}
	}
}

func TestFullDialogueIsIdempotent(t *testing.T) {
	d := testDomain()
	trackers := []*tracker.DialogueStateTracker{greetStory("a"), greetStory("b")}
	s := &FullDialogue{}

	states1, labels1, err := s.TrainingStatesAndActions(trackers, d, Hooks{})
	require.NoError(t, err)
	states2, labels2, err := s.TrainingStatesAndActions(trackers, d, Hooks{})
	require.NoError(t, err)

	assert.Equal(t, labels1, labels2)
	assert.Equal(t, states1, states2)
	require.NotEmpty(t, states1[0])
	assert.NotSame(t, states1[0][0], states2[0][0])
}

func TestPersistAndLoad(t *testing.T) {
	dir := t.TempDir()

	missing, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, missing)

	d := testDomain()
	tf := New(NewSingleStateFeaturizer(), NewMaxHistory(3, true))
	_, _, err = tf.FeaturizeTrackers([]*tracker.DialogueStateTracker{greetStory("a")}, d, nil)
	require.NoError(t, err)
	require.NoError(t, tf.Persist(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, &MaxHistory{MaxHistory: 3, RemoveDuplicates: true}, loaded.Strategy)
	assert.Equal(t, d.NumActions(), loaded.StateFeaturizer.Dimension(features.ActionName))

	want, err := tf.CreateStateFeatures([]*tracker.DialogueStateTracker{greetStory("b")}, d, nil)
	require.NoError(t, err)
	got, err := loaded.CreateStateFeatures([]*tracker.DialogueStateTracker{greetStory("b")}, d, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0], len(want[0]))
	for i := range want[0] {
		for _, attr := range want[0][i].Attributes() {
			assert.Equal(t, want[0][i][attr][0].Sparse().ToDense(), got[0][i][attr][0].Sparse().ToDense())
		}
	}
}
