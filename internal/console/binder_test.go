package console_test

import (
	"errors"
	"testing"

	"github.com/zsprackett/agent-console/internal/console"
	"github.com/zsprackett/agent-console/internal/events"
)

func TestBinderJoinsOncePerConnect(t *testing.T) {
	ch := &captureChannel{}
	lc := console.NewLifecycle(discardLogger())
	console.NewBinder(ch, discardLogger(), nil).Attach(lc)

	if n := ch.count(events.JoinUserRoom); n != 0 {
		t.Fatalf("join emitted before open: %d", n)
	}

	lc.Opened()
	if n := ch.count(events.JoinUserRoom); n != 1 {
		t.Fatalf("after first open: got %d joins want 1", n)
	}

	lc.Failed("boom")
	lc.Retrying()
	if n := ch.count(events.JoinUserRoom); n != 1 {
		t.Fatalf("join emitted while error/connecting: %d", n)
	}

	lc.Opened()
	if n := ch.count(events.JoinUserRoom); n != 2 {
		t.Errorf("after reconnect: got %d joins want 2", n)
	}
}

func TestBinderJoinCarriesNoPayload(t *testing.T) {
	ch := &captureChannel{}
	lc := console.NewLifecycle(discardLogger())
	console.NewBinder(ch, discardLogger(), nil).Attach(lc)
	lc.Opened()

	sent := ch.events()
	if len(sent) != 1 || sent[0].payload != nil {
		t.Errorf("expected one join without payload, got %+v", sent)
	}
}

func TestBinderReportsEmitFailure(t *testing.T) {
	ch := &captureChannel{err: errors.New("not open")}
	lc := console.NewLifecycle(discardLogger())
	var reported []error
	console.NewBinder(ch, discardLogger(), func(err error) { reported = append(reported, err) }).Attach(lc)

	lc.Opened()

	if len(reported) != 1 {
		t.Fatalf("expected one reported error, got %d", len(reported))
	}
	if !errors.Is(reported[0], ch.err) {
		t.Errorf("reported error should wrap the emit error: %v", reported[0])
	}
}
