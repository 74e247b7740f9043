package match

import (
	"context"

	"github.com/looplab/fsm"
)

// Turn phases.
const (
	PhaseIdle     = "idle"
	PhaseElected  = "elected"
	PhaseActing   = "acting"
	PhaseFinished = "finished"
)

const (
	eventElect  = "elect"
	eventAct    = "act"
	eventEnd    = "end"
	eventFinish = "finish"
)

// newPhaseMachine builds the turn cycle: an elected actor starts acting once
// it holds a token, and any turn end returns to idle for the next race.
func newPhaseMachine(onChange func()) *fsm.FSM {
	return fsm.NewFSM(
		PhaseIdle,
		fsm.Events{
			{Name: eventElect, Src: []string{PhaseIdle}, Dst: PhaseElected},
			{Name: eventAct, Src: []string{PhaseElected}, Dst: PhaseActing},
			{Name: eventEnd, Src: []string{PhaseElected, PhaseActing}, Dst: PhaseIdle},
			{Name: eventFinish, Src: []string{PhaseIdle, PhaseElected, PhaseActing}, Dst: PhaseFinished},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, _ *fsm.Event) {
				if onChange != nil {
					onChange()
				}
			},
		},
	)
}

// transition fires event when the current phase allows it.
func (m *Match) transition(ctx context.Context, event string) {
	if !m.phase.Can(event) {
		return
	}
	if err := m.phase.Event(ctx, event); err != nil {
		m.cfg.Logger.Printf("match %s: phase %s: %v", m.cfg.ID, event, err)
	}
}

func validPhase(phase string) bool {
	switch phase {
	case PhaseIdle, PhaseElected, PhaseActing, PhaseFinished:
		return true
	}
	return false
}
