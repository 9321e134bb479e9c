package bus

import "testing"

func recvOrFail(t *testing.T, s *Subscription, want any) {
	t.Helper()
	select {
	case m := <-s.Channel():
		if m.Payload != want {
			t.Fatalf("payload: want %v, got %v", want, m.Payload)
		}
	default:
		t.Fatalf("expected a message with payload %v, got none", want)
	}
}

func expectNone(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case m := <-s.Channel():
		t.Fatalf("unexpected message: %v", m.Payload)
	default:
	}
}

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("t")

	sub := c.Subscribe(T("config", "peripherals"))
	c.Publish(c.NewMessage(T("config", "peripherals"), "hello", false))
	recvOrFail(t, sub, "hello")
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("t")

	c.Publish(c.NewMessage(T("periph", "state"), "ready", true))

	// Late subscriber still sees the retained payload.
	sub := c.Subscribe(T("periph", "state"))
	recvOrFail(t, sub, "ready")

	// Publishing nil clears it.
	c.Publish(c.NewMessage(T("periph", "state"), nil, true))
	sub2 := c.Subscribe(T("periph", "state"))
	// drain the clear delivered to the live sub
	<-sub.Channel()
	expectNone(t, sub2)
}

func TestWildcard_SingleLevel(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("t")

	s1 := c.Subscribe(T("a", "+", "c"))
	s2 := c.Subscribe(T("a", "+", "+"))
	s3 := c.Subscribe(T("a", "b", "+"))
	sNo := c.Subscribe(T("a", "+", "d"))

	c.Publish(c.NewMessage(T("a", "b", "c"), "m1", false))
	recvOrFail(t, s1, "m1")
	recvOrFail(t, s2, "m1")
	recvOrFail(t, s3, "m1")
	expectNone(t, sNo)

	c.Publish(c.NewMessage(T("a", "x", "y"), "m2", false))
	expectNone(t, s1)
	recvOrFail(t, s2, "m2")
	expectNone(t, s3)

	// "+" must match exactly one token.
	c.Publish(c.NewMessage(T("a", "c"), "m3", false))
	expectNone(t, s1)
	expectNone(t, s2)
}

func TestWildcard_MultiLevel(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("t")

	s := c.Subscribe(T("a", "#"))

	c.Publish(c.NewMessage(T("a"), "p1", false))
	recvOrFail(t, s, "p1")

	c.Publish(c.NewMessage(T("a", "b"), "p2", false))
	recvOrFail(t, s, "p2")

	c.Publish(c.NewMessage(T("a", "b", "c"), "p3", false))
	recvOrFail(t, s, "p3")
}

func TestWildcard_RetainedDelivery(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("t")

	c.Publish(c.NewMessage(T("a", "b"), "r1", true))
	c.Publish(c.NewMessage(T("a", "b", "c"), "r2", true))
	c.Publish(c.NewMessage(T("a", "x"), "r3", true))

	s := c.Subscribe(T("a", "+"))
	got := map[any]bool{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-s.Channel():
			got[m.Payload] = true
		default:
			t.Fatalf("expected 2 retained messages, got %d", i)
		}
	}
	if !got["r1"] || !got["r3"] {
		t.Fatalf("retained delivery mismatch: %v", got)
	}
	expectNone(t, s)
}

func TestReply(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("t")

	handler := c.Subscribe(T("periph", "invoke", "m1", "setPower"))
	replies := c.Subscribe(T("reply", "1"))

	c.Publish(c.NewRequest(T("periph", "invoke", "m1", "setPower"), 50.0, T("reply", "1")))

	req := <-handler.Channel()
	if !req.CanReply() {
		t.Fatal("request should carry ReplyTo")
	}
	c.Reply(req, "ok", false)
	recvOrFail(t, replies, "ok")
}

func TestUnsubscribePrunes(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("t")

	s := c.Subscribe(T("a", "b"))
	s.Unsubscribe()
	c.Publish(c.NewMessage(T("a", "b"), "m", false))
	// channel closed after unsubscribe; receiving yields zero value
	if m, ok := <-s.Channel(); ok {
		t.Fatalf("expected closed channel, got %v", m)
	}
}
