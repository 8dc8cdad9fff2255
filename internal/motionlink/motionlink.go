// Package motionlink is the Motion-Controller Listener and the command
// framing used to talk to it over the wired serial channel. The physical
// link is abstracted behind an io.ReadWriteCloser (internal/transport);
// this package only knows line framing.
package motionlink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"

	"github.com/fieldrelay/missionctl/internal/missioncontext"
)

// Verb is one of the four motor primitives the motion controller accepts.
type Verb string

const (
	VerbForward  Verb = "FWD"
	VerbBackward Verb = "BWD"
	VerbTurnLeft Verb = "TURNL"
	VerbTurnRight Verb = "TURNR"
)

// Default speed percentages for each motion verb.
const (
	moveSpeedPercent = 70
	turnSpeedPercent = 60
)

func speedFor(v Verb) int {
	switch v {
	case VerbForward, VerbBackward:
		return moveSpeedPercent
	default:
		return turnSpeedPercent
	}
}

// FrameCommand renders the outbound wire frame
// ":<id>/MOTOR/<verb>/<speed%>/<value>;" for one motion command.
func FrameCommand(id uint32, v Verb, value int) string {
	return fmt.Sprintf(":%d/MOTOR/%s/%d/%d;", id, v, speedFor(v), value)
}

var ackRe = regexp.MustCompile(`^!(\d+)/DONE;$`)

// ParseAck recognises a "!<id>/DONE;" completion frame. ok is false for any
// frame that doesn't match; such frames are logged and dropped, never
// stalling the executor.
func ParseAck(line string) (id uint32, ok bool) {
	m := ackRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// Listener reads ack frames from the motion controller and records them
// into the Mission Context. It owns no write path; commands are sent via
// Link.Send by the executor and by the Operator Listener.
type Listener struct {
	mctx *missioncontext.Context
	r    io.Reader
}

// NewListener creates a Listener reading from r.
func NewListener(mctx *missioncontext.Context, r io.Reader) *Listener {
	return &Listener{mctx: mctx, r: r}
}

// Run blocks reading lines from the motion controller until ctx is
// cancelled or the stream closes. Each "!<id>/DONE;" frame records the ack;
// anything else is logged and ignored.
func (l *Listener) Run(ctx context.Context) {
	scanner := bufio.NewScanner(l.r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := scanner.Text()
		id, ok := ParseAck(line)
		if !ok {
			log.Printf("[MOTLINK] unrecognised frame, dropped: %q", line)
			continue
		}
		log.Printf("[MOTLINK] ack id=%d", id)
		l.mctx.RecordMotionAck(id)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[MOTLINK] read error: %v", err)
	}
}

// Link is the write side of the motion-controller channel: a framed
// sender. The executor sends mission commands through it and the Operator
// Listener sends direct "stm" commands through it; Send does not serialise
// concurrent callers.
type Link struct {
	w io.Writer
}

// NewLink wraps w as a command sender.
func NewLink(w io.Writer) *Link {
	return &Link{w: w}
}

// Send transmits one framed motion command.
func (l *Link) Send(id uint32, v Verb, value int) error {
	frame := FrameCommand(id, v, value)
	_, err := io.WriteString(l.w, frame+"\n")
	if err != nil {
		return fmt.Errorf("motionlink: send: %w", err)
	}
	log.Printf("[MOTLINK] sent %s", frame)
	return nil
}

// directIDFloor is the bottom of the id range reserved for operator direct
// "stm" commands: the top half of the 32-bit space, disjoint from the
// per-mission counter that starts at 1.
const directIDFloor uint32 = 0x80000000

// DirectIDAllocator hands out command ids for operator direct "stm"
// commands, entirely independent of any mission's NextCommandID counter.
type DirectIDAllocator struct {
	next uint32
}

// NewDirectIDAllocator creates an allocator seeded at the reserved floor.
func NewDirectIDAllocator() *DirectIDAllocator {
	return &DirectIDAllocator{next: directIDFloor}
}

// Next returns the next id, wrapping back to directIDFloor on overflow.
func (a *DirectIDAllocator) Next() uint32 {
	id := a.next
	if a.next == ^uint32(0) {
		a.next = directIDFloor
	} else {
		a.next++
	}
	return id
}
