// Package operator is the Operator Listener and the Acknowledged Send path:
// frames inbound JSON lines from the operator console, classifies them,
// performs the protocol-boundary coordinate/direction translations, and
// writes framed status/ack lines back out under a single-writer discipline.
package operator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fieldrelay/missionctl/internal/missioncontext"
	"github.com/fieldrelay/missionctl/internal/motionlink"
	"github.com/fieldrelay/missionctl/internal/types"
)

// Verb prefixes recognised in a direct "stm" command, and their alias to
// the four motion verbs motionlink understands. FL/FR alias to TL/TR.
var stmVerbAlias = map[string]motionlink.Verb{
	"FW": motionlink.VerbForward,
	"BW": motionlink.VerbBackward,
	"TL": motionlink.VerbTurnLeft,
	"TR": motionlink.VerbTurnRight,
	"FL": motionlink.VerbTurnLeft,
	"FR": motionlink.VerbTurnRight,
}

// Listener reads framed operator messages, classifies them, and drives the
// Mission Context accordingly. It owns the Sender used for acknowledged
// replies, since every inbound message gets exactly one ack.
type Listener struct {
	mctx   *missioncontext.Context
	r      io.Reader
	sender *Sender
	link   *motionlink.Link
	direct *motionlink.DirectIDAllocator
}

// NewListener creates a Listener reading operator frames from r and
// replying via sender. link and direct support forwarding "stm" direct
// motion commands straight to the motion controller.
func NewListener(mctx *missioncontext.Context, r io.Reader, sender *Sender, link *motionlink.Link, direct *motionlink.DirectIDAllocator) *Listener {
	return &Listener{mctx: mctx, r: r, sender: sender, link: link, direct: direct}
}

// Run blocks reading operator frames until ctx is cancelled or the stream
// closes.
func (l *Listener) Run(ctx context.Context) {
	scanner := bufio.NewScanner(l.r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		l.handleLine(ctx, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[OPERATOR] read error: %v", err)
	}
}

func (l *Listener) handleLine(ctx context.Context, line string) {
	var msg types.OperatorMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Cat == "" {
		log.Printf("[OPERATOR] malformed frame, dropped: %q", line)
		l.sender.SendAck(types.OperatorAck{Cat: "unknown", Status: "malformed frame"})
		return
	}

	switch msg.Cat {
	case "sendArena":
		l.handleSendArena(msg)
	case "stop":
		l.mctx.RequestAbort()
		l.sender.SendAck(types.OperatorAck{Cat: "stop", Status: "STOP command received."})
	case "stm":
		l.handleSTM(ctx, msg)
	default:
		log.Printf("[OPERATOR] unknown category %q", msg.Cat)
		l.sender.SendAck(types.OperatorAck{Cat: msg.Cat, Status: "unknown category"})
	}
}

func (l *Listener) handleSendArena(msg types.OperatorMessage) {
	var payload types.SendArenaPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		log.Printf("[OPERATOR] malformed sendArena value: %v", err)
		l.sender.SendAck(types.OperatorAck{Cat: "sendArena", Status: "malformed map"})
		return
	}

	obstacles := make([]types.WireObstacle, 0, len(payload.Obstacles))
	for _, o := range payload.Obstacles {
		translated, ok := translateObstacle(o)
		if !ok {
			log.Printf("[OPERATOR] skipping unparseable obstacle id=%d", o.ID)
			continue
		}
		obstacles = append(obstacles, translated)
	}

	pose := types.RobotPose{
		X: payload.RobotX - 1,
		Y: payload.RobotY - 1,
		D: operatorDirToInternal(payload.RobotDir),
	}

	if !l.mctx.TryAcceptMission(obstacles, pose, payload.Retrying) {
		l.sender.SendAck(types.OperatorAck{Cat: "sendArena", Status: "Robot is busy"})
		return
	}
	l.sender.SendAck(types.OperatorAck{Cat: "sendArena", Status: "Mission accepted."})
}

// translateObstacle converts one operator-indexed obstacle into the internal
// 0-indexed, 4-way-direction shape, or reports ok=false if its direction is
// unparseable. Unparseable obstacles are skipped individually rather than
// failing the whole sendArena.
func translateObstacle(o types.WireObstacle) (types.WireObstacle, bool) {
	if o.Dir < 1 || o.Dir > 4 {
		return types.WireObstacle{}, false
	}
	return types.WireObstacle{
		ID:  o.ID,
		X:   o.X - 1,
		Y:   o.Y - 1,
		Dir: int(operatorDirToInternal(o.Dir)),
	}, true
}

// operatorDirToInternal maps operator direction 1..4 to internal {0,2,4,6}
// via (d-1)*2.
func operatorDirToInternal(d int) types.Direction {
	return types.Direction((d - 1) * 2)
}

// stmMinLen is the shortest direct command of the form "<XX><n>", e.g.
// "FW10", "TL90": a two-letter verb and at least one digit.
const stmMinLen = 3

func (l *Listener) handleSTM(ctx context.Context, msg types.OperatorMessage) {
	var raw string
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		log.Printf("[OPERATOR] malformed stm value: %v", err)
		l.sender.SendAck(types.OperatorAck{Cat: "stm", Status: "malformed command"})
		return
	}
	raw = strings.TrimSpace(raw)
	if len(raw) < stmMinLen {
		l.sender.SendAck(types.OperatorAck{Cat: "stm", Status: "malformed command"})
		return
	}
	prefix, rest := raw[:2], raw[2:]
	verb, ok := stmVerbAlias[prefix]
	if !ok {
		l.sender.SendAck(types.OperatorAck{Cat: "stm", Status: fmt.Sprintf("unknown verb %q", prefix)})
		return
	}
	value, err := strconv.Atoi(rest)
	if err != nil {
		l.sender.SendAck(types.OperatorAck{Cat: "stm", Status: "malformed value"})
		return
	}

	id := l.direct.Next()
	if err := l.link.Send(id, verb, value); err != nil {
		log.Printf("[OPERATOR] direct stm send failed: %v", err)
		l.sender.SendAck(types.OperatorAck{Cat: "stm", Status: "send failed"})
		return
	}

	const directAckTimeout = 10 * time.Second
	timedOut := make(chan struct{})
	timer := time.AfterFunc(directAckTimeout, func() { close(timedOut) })
	defer timer.Stop()

	acked, aborted := l.mctx.AwaitMotionAck(id, timedOut)
	switch {
	case acked:
		l.sender.SendAck(types.OperatorAck{Cat: "stm", Status: "done"})
	case aborted:
		l.sender.SendAck(types.OperatorAck{Cat: "stm", Status: "aborted"})
	default:
		l.sender.SendAck(types.OperatorAck{Cat: "stm", Status: "timed out"})
	}
	_ = ctx
}

// ---------------------------------------------------------------------------
// Acknowledged Operator Send
// ---------------------------------------------------------------------------

const (
	sendRetries = 3
	sendBackoff = 300 * time.Millisecond
)

// Sender is the single writer for the operator channel. Every outbound
// frame, whether textual status or structured ack, goes through it to
// satisfy the single-writer discipline the channel requires.
type Sender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSender wraps w as the operator channel's sole writer.
func NewSender(w io.Writer) *Sender {
	return &Sender{w: w}
}

// SendText writes a textual status line, quoted, newline-terminated, with
// up to 3 retries at 300ms backoff on transient write failure.
func (s *Sender) SendText(status string) {
	s.send(fmt.Sprintf("%q\n", status))
}

// SendAck writes a structured acknowledgement frame.
func (s *Sender) SendAck(ack types.OperatorAck) {
	body, err := json.Marshal(ack)
	if err != nil {
		log.Printf("[OPERATOR] marshal ack: %v", err)
		return
	}
	s.send(string(body) + "\n")
}

func (s *Sender) send(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < sendRetries; attempt++ {
		if _, err := io.WriteString(s.w, frame); err != nil {
			lastErr = err
			log.Printf("[OPERATOR] write attempt %d failed: %v", attempt+1, err)
			time.Sleep(sendBackoff)
			continue
		}
		return
	}
	log.Printf("[OPERATOR] permanent send failure after %d attempts: %v", sendRetries, lastErr)
}
