package featurizer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"

	"github.com/happyhackingspace/turnfeat/domain"
	"github.com/happyhackingspace/turnfeat/tracker"
)

// Strategy names as persisted and accepted on the command line.
const (
	FullDialogueName = "full_dialogue"
	MaxHistoryName   = "max_history"
)

var (
	// ErrMultipleUnpredictable reports a story with more than one
	// unpredictable action.
	ErrMultipleUnpredictable = errors.New("found two unpredictable actions in one story, check your story files")
	// ErrUnknownStrategy reports an unsupported strategy name.
	ErrUnknownStrategy = errors.New("unknown featurization strategy")
)

// Strategy decides which (states, labels) pairs a tracker contributes.
type Strategy interface {
	Name() string
	TrainingStatesAndActions(trackers []*tracker.DialogueStateTracker, d *domain.Domain, hooks Hooks) ([][]*tracker.State, [][]string, error)
	PredictionStates(trackers []*tracker.DialogueStateTracker, d *domain.Domain) [][]*tracker.State
}

// NewStrategy builds a strategy by name. maxHistory and removeDuplicates are
// only used by max_history.
func NewStrategy(name string, maxHistory int, removeDuplicates bool) (Strategy, error) {
	switch name {
	case FullDialogueName:
		return &FullDialogue{}, nil
	case MaxHistoryName, "":
		return &MaxHistory{MaxHistory: maxHistory, RemoveDuplicates: removeDuplicates}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// createStates thaws the tracker's past states into fresh copies.
func createStates(t *tracker.DialogueStateTracker, d *domain.Domain) []*tracker.State {
	frozen := t.PastStates(d)
	states := make([]*tracker.State, len(frozen))
	for i, f := range frozen {
		states[i] = f.Thaw()
	}
	return states
}

// FullDialogue produces one example per tracker: all of its states paired
// with the labels of every predictable action.
type FullDialogue struct{}

// Name implements Strategy.
func (*FullDialogue) Name() string { return FullDialogueName }

// TrainingStatesAndActions implements Strategy.
func (s *FullDialogue) TrainingStatesAndActions(trackers []*tracker.DialogueStateTracker, d *domain.Domain, hooks Hooks) ([][]*tracker.State, [][]string, error) {
	slog.Debug("Creating states and action examples", "strategy", s.Name())
	hooks.start(len(trackers))
	defer hooks.finish()

	trackersAsStates := make([][]*tracker.State, 0, len(trackers))
	trackersAsActions := make([][]string, 0, len(trackers))
	for _, t := range trackers {
		states := createStates(t, d)

		deleteFirst := false
		actions := []string{}
		position := 0
		for _, ev := range t.AppliedEvents() {
			a, ok := ev.(tracker.ActionExecuted)
			if !ok {
				continue
			}
			if !a.Unpredictable {
				actions = append(actions, a.Identifier())
			} else {
				if deleteFirst {
					return nil, nil, fmt.Errorf("tracker %q: %w", t.SenderID, ErrMultipleUnpredictable)
				}
				if position > 0 {
					slog.Warn("Unpredictable action is not the first action of the story", "sender_id", t.SenderID, "action", a.Identifier())
				}
				deleteFirst = true
			}
			position++
		}

		if deleteFirst && len(states) > 0 {
			states = states[1:]
		}
		if len(states) > 0 {
			states = states[:len(states)-1]
		}
		trackersAsStates = append(trackersAsStates, states)
		trackersAsActions = append(trackersAsActions, actions)

		hooks.tracker(s.Name())
		for range actions {
			hooks.example(s.Name())
		}
		hooks.step(fmt.Sprintf("# actions: %d", len(actions)))
	}
	return trackersAsStates, trackersAsActions, nil
}

// PredictionStates implements Strategy.
func (*FullDialogue) PredictionStates(trackers []*tracker.DialogueStateTracker, d *domain.Domain) [][]*tracker.State {
	out := make([][]*tracker.State, len(trackers))
	for i, t := range trackers {
		out[i] = createStates(t, d)
	}
	return out
}

// MaxHistory slices a tracker into one example per predictable action, each
// holding at most MaxHistory states that end at the action's turn.
type MaxHistory struct {
	// MaxHistory bounds the window; 0 keeps the whole prefix.
	MaxHistory int
	// RemoveDuplicates drops examples whose (window, label) pair was already
	// produced in the same call.
	RemoveDuplicates bool
}

// NewMaxHistory returns a max-history strategy.
func NewMaxHistory(maxHistory int, removeDuplicates bool) *MaxHistory {
	return &MaxHistory{MaxHistory: maxHistory, RemoveDuplicates: removeDuplicates}
}

// Name implements Strategy.
func (*MaxHistory) Name() string { return MaxHistoryName }

// SliceStateHistory returns the last n states, or all of them when n is 0.
func SliceStateHistory(states []*tracker.State, n int) []*tracker.State {
	if n <= 0 || len(states) <= n {
		return states
	}
	return states[len(states)-n:]
}

// HashExample hashes a window and its label over canonical state keys. Nil
// states hash differently from empty ones.
func HashExample(states []*tracker.State, label string) uint64 {
	h := xxhash.New()
	for _, s := range states {
		if s == nil {
			_, _ = h.WriteString("\x00nil")
		} else {
			_, _ = h.WriteString(tracker.FreezeState(s).Key())
		}
		_, _ = h.WriteString("\x1f")
	}
	_, _ = h.WriteString("\x1e")
	_, _ = h.WriteString(label)
	return h.Sum64()
}

// TrainingStatesAndActions implements Strategy.
func (s *MaxHistory) TrainingStatesAndActions(trackers []*tracker.DialogueStateTracker, d *domain.Domain, hooks Hooks) ([][]*tracker.State, [][]string, error) {
	slog.Debug("Creating states and action examples", "strategy", s.Name(), "max_history", s.MaxHistory, "remove_duplicates", s.RemoveDuplicates)
	hooks.start(len(trackers))
	defer hooks.finish()

	var trackersAsStates [][]*tracker.State
	var trackersAsActions [][]string
	seen := make(map[uint64]struct{})

	for _, t := range trackers {
		states := createStates(t, d)

		idx := 0
		for _, ev := range t.AppliedEvents() {
			a, ok := ev.(tracker.ActionExecuted)
			if !ok {
				continue
			}
			if !a.Unpredictable {
				label := a.Identifier()
				window := copyWindow(SliceStateHistory(states[:idx+1], s.MaxHistory))
				keep := true
				if s.RemoveDuplicates {
					hash := HashExample(window, label)
					if _, dup := seen[hash]; dup {
						keep = false
						hooks.duplicate(s.Name())
					} else {
						seen[hash] = struct{}{}
					}
				}
				if keep {
					trackersAsStates = append(trackersAsStates, window)
					trackersAsActions = append(trackersAsActions, []string{label})
					hooks.example(s.Name())
				}
			}
			idx++
		}
		hooks.tracker(s.Name())
		hooks.step(fmt.Sprintf("# actions: %d", len(trackersAsActions)))
	}

	slog.Debug("Created action examples", "count", len(trackersAsActions))
	return trackersAsStates, trackersAsActions, nil
}

// PredictionStates implements Strategy. User text is removed from every
// returned state.
func (s *MaxHistory) PredictionStates(trackers []*tracker.DialogueStateTracker, d *domain.Domain) [][]*tracker.State {
	out := make([][]*tracker.State, len(trackers))
	for i, t := range trackers {
		window := SliceStateHistory(createStates(t, d), s.MaxHistory)
		for _, st := range window {
			stripUserText(st)
		}
		out[i] = window
	}
	return out
}

// copyWindow gives every example its own states so that overlapping windows
// never alias.
func copyWindow(states []*tracker.State) []*tracker.State {
	out := make([]*tracker.State, len(states))
	for i, s := range states {
		out[i] = s.Copy()
	}
	return out
}

func stripUserText(s *tracker.State) {
	if s == nil || s.User == nil {
		return
	}
	s.User.Text = ""
	if s.User.Intent == "" && len(s.User.Entities) == 0 {
		s.User = nil
	}
}
