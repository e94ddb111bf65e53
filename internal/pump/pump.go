// Package pump implements the single-threaded cooperative pump (spec.md
// §5): read & decode, drain the world input queue (replies re-enter),
// drain the scheduler for due deadlines, write out queued operations, then
// wait for the next tick of a fixed-rate ticker (tick_rate); it does not
// wake early for a scheduler deadline or a ready read. Grounded on the teacher's
// cmd/l1jgo/main.go dual-ticker game loop shape, collapsed to the single
// cycle spec.md describes (input drain always precedes timer drain, so the
// teacher's separate low-latency input-only ticker is unnecessary here).
package pump

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/worldforge/worldcore/internal/account"
	"github.com/worldforge/worldcore/internal/netgw"
	"github.com/worldforge/worldcore/internal/op"
	"github.com/worldforge/worldcore/internal/serverctx"
)

// Pump ties the network gateway, the world router, and the scheduler
// together into the §5 cooperative loop.
type Pump struct {
	ctx    *serverctx.Context
	server *netgw.Server

	sessions    map[uint64]*netgw.Session
	connections map[uint64]*account.Connection

	tickRate time.Duration
	log      *zap.Logger
}

func New(sctx *serverctx.Context, server *netgw.Server) *Pump {
	return &Pump{
		ctx:         sctx,
		server:      server,
		sessions:    make(map[uint64]*netgw.Session),
		connections: make(map[uint64]*account.Connection),
		tickRate:    sctx.Config.Network.TickRate,
		log:         sctx.Log,
	}
}

// Run drives the pump until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) error {
	go p.server.AcceptLoop()

	ticker := time.NewTicker(p.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.server.Shutdown()
			return nil
		case sess := <-p.server.NewSessions():
			p.onConnect(sess)
		case id := <-p.server.DeadSessions():
			p.onDisconnect(id)
		case <-ticker.C:
			p.Cycle()
		}
	}
}

func (p *Pump) onConnect(sess *netgw.Session) {
	p.sessions[sess.ID] = sess
	conn := account.NewConnection(connectionID(sess.ID), p.ctx.World, p.ctx.Store, p.log)
	p.connections[sess.ID] = conn
	p.log.Info("connection bound", zap.Uint64("session", sess.ID))
}

func (p *Pump) onDisconnect(id uint64) {
	if conn, ok := p.connections[id]; ok {
		conn.Destroy()
	}
	delete(p.connections, id)
	delete(p.sessions, id)
}

func connectionID(sessionID uint64) string {
	return "conn#" + strconv.FormatUint(sessionID, 10)
}

// Cycle runs one full pump cycle (spec.md §5 steps 1-5). Between cycles,
// Run waits for its fixed-rate ticker, not for the next deadline or a
// read-ready event.
func (p *Pump) Cycle() {
	now := time.Now()

	// Steps 1-2: read ready bytes from each connection (already decoded by
	// the session's reader goroutine) and push into the input queue. Replies
	// addressed back at the connection itself (account-level Info, Error
	// taxonomy replies) never enter the world: they go straight to the
	// client's outbox.
	var inputQueue []op.Operation
	for id, sess := range p.sessions {
		conn := p.connections[id]
	drain:
		for {
			select {
			case o := <-sess.InQueue:
				for _, reply := range conn.Operation(context.Background(), o) {
					if reply.To == conn.ID || (reply.To == "" && (reply.Kind == op.KindError || reply.Kind == op.KindInfo)) {
						conn.Outbox = append(conn.Outbox, reply)
						continue
					}
					inputQueue = append(inputQueue, reply)
				}
			default:
				break drain
			}
		}
	}

	// Step 3: drain the world input queue; replies re-enter the queue,
	// unless they carry a positive future-seconds delay, in which case
	// they go to the scheduler instead (spec.md §5 "Operations with
	// future-seconds < 0 are treated as immediate").
	p.drainQueue(inputQueue, now)

	// Step 4: drain the scheduler for anything due; input drain above
	// always precedes this (spec.md §5: "input drain precedes timer
	// drain").
	due := p.ctx.Sched.Due(now)
	p.drainQueue(due, now)

	// Step 5: write queued operations out to connections.
	for id, conn := range p.connections {
		if len(conn.Outbox) == 0 {
			continue
		}
		sess := p.sessions[id]
		for _, o := range conn.Outbox {
			sess.Send(o)
		}
		conn.Outbox = conn.Outbox[:0]
	}
}

// drainQueue delivers every operation in queue to the world router,
// re-queuing immediate replies and scheduling delayed ones, until empty.
func (p *Pump) drainQueue(queue []op.Operation, now time.Time) {
	for len(queue) > 0 {
		o := queue[0]
		queue = queue[1:]

		if o.FutureSeconds > 0 {
			p.ctx.Sched.Schedule(o, now)
			continue
		}
		queue = append(queue, p.ctx.World.Operation(o)...)
	}
}
