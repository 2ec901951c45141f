package eventbus

import "testing"

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: TypeTickDone})
	b.Publish(Event{Type: TypeExhausted}) // dropped for a (buffer 1)

	if e := <-a; e.Type != TypeTickDone || e.Time.IsZero() {
		t.Fatalf("a got %+v", e)
	}
	if len(a) != 0 {
		t.Fatalf("slow subscriber should have dropped the second event")
	}
	if len(c) != 2 {
		t.Fatalf("c buffered %d events, want 2", len(c))
	}

	unsubA()
	unsubA()
	b.Publish(Event{Type: TypeTickDone}) // must not panic after unsubscribe
	if _, ok := <-a; ok {
		t.Fatalf("unsubscribed channel should be closed")
	}
}

func TestNopBus(t *testing.T) {
	t.Parallel()

	b := Nop()
	b.Publish(Event{Type: TypeTickDone})
	ch, unsub := b.Subscribe(1)
	defer unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("nop subscription should be closed")
	}
}
