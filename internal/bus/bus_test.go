package bus

import "testing"

func TestCoalescingReplacesPending(t *testing.T) {
	c := NewCoalescing[int]()
	c.Send(1)
	c.Send(2)

	select {
	case v := <-c.C():
		if v != 2 {
			t.Fatalf("expected coalesced value 2, got %d", v)
		}
	default:
		t.Fatal("expected a value to be pending")
	}

	select {
	case v := <-c.C():
		t.Fatalf("expected only one pending value, got extra %d", v)
	default:
	}
}

func TestPubSubFanOut(t *testing.T) {
	p := NewPubSub[int](2, 2)

	ch1, _, ok := p.Subscribe()
	if !ok {
		t.Fatal("expected first subscribe to succeed")
	}
	ch2, unsub2, ok := p.Subscribe()
	if !ok {
		t.Fatal("expected second subscribe to succeed")
	}
	if _, _, ok := p.Subscribe(); ok {
		t.Fatal("expected third subscribe to be rejected at maxSubs")
	}

	p.Publish(42)
	if v := <-ch1; v != 42 {
		t.Fatalf("sub1 got %d, want 42", v)
	}
	if v := <-ch2; v != 42 {
		t.Fatalf("sub2 got %d, want 42", v)
	}

	unsub2()
	if p.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", p.SubscriberCount())
	}
}

func TestPubSubLaggingSubscriberSkipsToNewest(t *testing.T) {
	p := NewPubSub[int](1, 1)
	ch, _, _ := p.Subscribe()

	p.Publish(1)
	p.Publish(2) // subscriber hasn't drained; oldest (1) should be dropped

	v := <-ch
	if v != 2 {
		t.Fatalf("expected lagging subscriber to observe newest value 2, got %d", v)
	}
}
