package session

import "testing"

func TestStateTerminal(t *testing.T) {
	terminal := []State{StateCompleted, StateAborted, StateTerminalAborted, StateError}
	for _, s := range terminal {
		if !s.terminal() {
			t.Errorf("%s: expected terminal", s)
		}
	}
	nonTerminal := []State{StateCreated, StateRunning, StateBonusDetectedAndHalted}
	for _, s := range nonTerminal {
		if s.terminal() {
			t.Errorf("%s: expected non-terminal", s)
		}
	}
}

func TestStateRunning(t *testing.T) {
	if !StateRunning.running() || !StateBonusDetectedAndHalted.running() {
		t.Fatal("Running and BonusDetectedAndHalted must count as running")
	}
	if StateCreated.running() {
		t.Fatal("Created must not count as running")
	}
}

func TestStateBlocksNewSession(t *testing.T) {
	blocking := []State{StateCreated, StateRunning, StateBonusDetectedAndHalted}
	for _, s := range blocking {
		if !s.blocksNewSession() {
			t.Errorf("%s: expected to block a new session", s)
		}
	}
	nonBlocking := []State{StateCompleted, StateAborted, StateTerminalAborted, StateError}
	for _, s := range nonBlocking {
		if s.blocksNewSession() {
			t.Errorf("%s: expected not to block a new session", s)
		}
	}
}

func TestSessionClone(t *testing.T) {
	s := &Session{SessionID: "s1", State: StateCreated}
	cp := s.clone()
	cp.State = StateRunning
	if s.State != StateCreated {
		t.Fatal("clone must not alias the original session")
	}
}
