package state

import "testing"

func TestMachineLifecycle(t *testing.T) {
	m := NewMachine()
	if m.Load() != Idle {
		t.Fatalf("expected idle, got %s", m.Load())
	}
	if m.Transition(Running, Stopped) {
		t.Fatalf("transition from wrong state must fail")
	}
	if !m.Transition(Idle, Initializing) || !m.Transition(Initializing, Running) {
		t.Fatalf("expected startup transitions to succeed")
	}

	select {
	case <-m.Stopping():
		t.Fatalf("stopping closed too early")
	default:
	}

	if !m.RequestStop() {
		t.Fatalf("first stop request should take effect")
	}
	if m.RequestStop() {
		t.Fatalf("second stop request should be a no-op")
	}
	select {
	case <-m.Stopping():
	default:
		t.Fatalf("stopping channel not closed")
	}

	m.MarkStopped()
	if m.Load() != Stopped || m.Load().String() != "stopped" {
		t.Fatalf("expected stopped, got %s", m.Load())
	}
	if m.RequestStop() {
		t.Fatalf("stop after stopped should be a no-op")
	}
}

func TestMarkStoppedClosesStopping(t *testing.T) {
	m := NewMachine()
	m.MarkStopped()
	select {
	case <-m.Stopping():
	default:
		t.Fatalf("stopping channel not closed by MarkStopped")
	}
}
