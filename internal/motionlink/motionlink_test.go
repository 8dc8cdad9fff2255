package motionlink

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fieldrelay/missionctl/internal/missioncontext"
)

func TestFrameCommand(t *testing.T) {
	cases := []struct {
		id    uint32
		verb  Verb
		value int
		want  string
	}{
		{1, VerbForward, 10, ":1/MOTOR/FWD/70/10;"},
		{2, VerbBackward, 5, ":2/MOTOR/BWD/70/5;"},
		{3, VerbTurnLeft, 90, ":3/MOTOR/TURNL/60/90;"},
		{4, VerbTurnRight, 45, ":4/MOTOR/TURNR/60/45;"},
	}
	for _, c := range cases {
		if got := FrameCommand(c.id, c.verb, c.value); got != c.want {
			t.Errorf("FrameCommand(%d,%s,%d) = %q, want %q", c.id, c.verb, c.value, got, c.want)
		}
	}
}

func TestParseAck(t *testing.T) {
	id, ok := ParseAck("!42/DONE;")
	if !ok || id != 42 {
		t.Errorf("ParseAck(\"!42/DONE;\") = (%d, %v), want (42, true)", id, ok)
	}

	if _, ok := ParseAck("garbage"); ok {
		t.Error("expected ok=false for unrecognised frame")
	}
	if _, ok := ParseAck("!DONE;"); ok {
		t.Error("expected ok=false for missing id")
	}
}

func TestListener_RecordsAckAndDropsUnrecognisedFrames(t *testing.T) {
	// Expectations: recognised ack frames record into the Mission Context;
	// unrecognised frames are logged and dropped, never stalling the reader.
	mctx := missioncontext.New()
	r := strings.NewReader("garbage line\n!7/DONE;\n")
	l := NewListener(mctx, r)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	l.Run(ctx)

	timedOut := make(chan struct{})
	close(timedOut)
	acked, _ := mctx.AwaitMotionAck(7, timedOut)
	if !acked {
		t.Error("expected ack id=7 to have been recorded")
	}
}

func TestLink_Send(t *testing.T) {
	var buf bytes.Buffer
	l := NewLink(&buf)
	if err := l.Send(9, VerbForward, 3); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := ":9/MOTOR/FWD/70/3;\n"
	if buf.String() != want {
		t.Errorf("wrote %q, want %q", buf.String(), want)
	}
}

func TestDirectIDAllocator_StartsAtFloorAndWraps(t *testing.T) {
	a := NewDirectIDAllocator()
	first := a.Next()
	if first != directIDFloor {
		t.Errorf("first id = %d, want %d", first, directIDFloor)
	}
	second := a.Next()
	if second != directIDFloor+1 {
		t.Errorf("second id = %d, want %d", second, directIDFloor+1)
	}

	a.next = ^uint32(0)
	wrapped := a.Next()
	if wrapped != ^uint32(0) {
		t.Errorf("id before wrap = %d, want max uint32", wrapped)
	}
	if a.next != directIDFloor {
		t.Errorf("allocator did not wrap back to floor, got %d", a.next)
	}
}
