package netmon

import "testing"

func TestManualMonitor_initialState(t *testing.T) {
	if NewManualMonitor(true).Online() != true {
		t.Error("Online() = false, want true")
	}
	if NewManualMonitor(false).Online() != false {
		t.Error("Online() = true, want false")
	}
}

// TestManualMonitor_transitionOnly verifies subscribers fire only on
// actual state changes, not on repeated sets of the same state.
func TestManualMonitor_transitionOnly(t *testing.T) {
	m := NewManualMonitor(false)

	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })

	m.SetOnline(false) // no transition
	m.SetOnline(true)
	m.SetOnline(true) // no transition
	m.SetOnline(false)

	want := []bool{true, false}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestManualMonitor_unsubscribe(t *testing.T) {
	m := NewManualMonitor(false)

	calls := 0
	unsub := m.Subscribe(func(bool) { calls++ })

	m.SetOnline(true)
	unsub()
	m.SetOnline(false)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no notifications after unsubscribe)", calls)
	}
}

// TestManualMonitor_reentrantSubscriber verifies a callback may call
// back into the monitor without deadlocking.
func TestManualMonitor_reentrantSubscriber(t *testing.T) {
	m := NewManualMonitor(false)

	var seen bool
	m.Subscribe(func(online bool) { seen = m.Online() == online })

	m.SetOnline(true)
	if !seen {
		t.Error("subscriber should observe the new state via Online()")
	}
}
