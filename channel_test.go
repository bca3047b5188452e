package reactor

import "testing"

func TestChannelHandleEventDispatchOrder(t *testing.T) {
	var order []string
	ch := NewChannel(nil, 7)
	ch.SetErrorCallback(func() { order = append(order, "error") })
	ch.SetCloseCallback(func() { order = append(order, "close") })
	ch.SetReadCallback(func(Timestamp) { order = append(order, "read") })
	ch.SetWriteCallback(func() { order = append(order, "write") })

	ch.SetRevents(errorEvent | readEvent | writeEvent)
	ch.HandleEvent(Now())

	want := []string{"error", "read", "write"}
	if len(order) != len(want) {
		t.Fatalf("dispatch order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
}

func TestChannelCloseSkippedWhenReadableToo(t *testing.T) {
	var order []string
	ch := NewChannel(nil, 7)
	ch.SetCloseCallback(func() { order = append(order, "close") })
	ch.SetReadCallback(func(Timestamp) { order = append(order, "read") })

	// Peer hangs up but there is still data to read: close must not fire,
	// only read, per spec.md §4.2 ("close (if peer hung up with no data)").
	ch.SetRevents(closeEvent | readEvent)
	ch.HandleEvent(Now())

	if len(order) != 1 || order[0] != "read" {
		t.Fatalf("dispatch = %v, want [read] (close suppressed by pending read data)", order)
	}
}

func TestChannelCloseFiresWhenNoReadableData(t *testing.T) {
	var fired bool
	ch := NewChannel(nil, 7)
	ch.SetCloseCallback(func() { fired = true })

	ch.SetRevents(closeEvent)
	ch.HandleEvent(Now())

	if !fired {
		t.Fatalf("close callback did not fire on bare closeEvent")
	}
}

func TestChannelTieSkipsDispatchWhenNotPromotable(t *testing.T) {
	var fired bool
	ch := NewChannel(nil, 7)
	ch.SetReadCallback(func(Timestamp) { fired = true })
	ch.Tie(func() (any, bool) { return nil, false })

	ch.SetRevents(readEvent)
	ch.HandleEvent(Now())

	if fired {
		t.Fatalf("read callback fired despite tie promotion failing")
	}
}

func TestChannelTieAllowsDispatchWhenPromotable(t *testing.T) {
	var fired bool
	ch := NewChannel(nil, 7)
	ch.SetReadCallback(func(Timestamp) { fired = true })
	owner := &struct{}{}
	ch.Tie(func() (any, bool) { return owner, true })

	ch.SetRevents(readEvent)
	ch.HandleEvent(Now())

	if !fired {
		t.Fatalf("read callback did not fire despite successful tie promotion")
	}
}

func TestChannelInterestBitsToggle(t *testing.T) {
	ch := &Channel{}
	ch.events = noneEvent
	if ch.IsReading() || ch.IsWriting() {
		t.Fatalf("new channel should have no interest set")
	}
	ch.events |= readEvent
	if !ch.IsReading() {
		t.Fatalf("IsReading() should be true after setting readEvent")
	}
	ch.events |= writeEvent
	if !ch.IsWriting() {
		t.Fatalf("IsWriting() should be true after setting writeEvent")
	}
	ch.events = noneEvent
	if !ch.IsNoneEvent() {
		t.Fatalf("IsNoneEvent() should be true once events cleared")
	}
}
