package kgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/brokercore/kpro/pkg/kmsg"
	"github.com/brokercore/kpro/pkg/kplog"
)

// Request is one application-level request to send over a Connection,
// per spec.md §3. Body is the already wire-encoded request body; this
// module's generic send path never inspects it, matching the external
// encode_request/decode_body boundary of spec.md §6 — only this
// package's own internal callers (version negotiation, discovery)
// know how to build and interpret specific API bodies.
type Request struct {
	Ref     any
	API     int16
	Version int16
	NoAck   bool
	Body    []byte
}

// Response is what a Connection delivers back for a Request, per
// spec.md §3. Ref is always copied from the originating Request.
type Response struct {
	Ref     any
	API     int16
	Version int16
	Message []byte
}

// DebugInfo is a snapshot of a Connection's internal state, exposed
// for introspection per spec.md §4.5 item 7.
type DebugInfo struct {
	ID            uuid.UUID
	Addr          string
	Transport     string
	CurrentCorrID int32
	PendingCount  int
	OldestAge     time.Duration
}

type actorSend struct {
	req     Request
	deliver deliverFunc // nil when req.NoAck
	ackCh   chan error  // signals the write outcome (not the response)
}

type debugCmd struct {
	enable bool
	replyCh chan DebugInfo
}

// Connection is the public handle to component C5, one actor owning a
// single socket. All exported methods may be called from any
// goroutine; the actor itself is single-threaded.
type Connection struct {
	id   uuid.UUID
	cfg  *Config
	addr string

	sendCh  chan actorSend
	debugCh chan debugCmd
	stopCh  chan struct{}
	doneCh  chan struct{}

	deathErr atomic.Value // error

	conn      net.Conn
	transport transportKind

	versions *versionRanges
}

// Start implements spec.md §6's `start(host, port, config)`: it runs
// the handshake engine (C4) synchronously and, on success, launches
// the connection actor (C5) and returns a handle to it.
//
// Unless cfg.NoLink is set, the connection's lifetime is tied to ctx:
// when ctx is done, the connection is stopped as if Stop had been
// called.
func Start(ctx context.Context, host string, port uint16, cfg Config) (*Connection, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	hsCtx := ctx
	if cfg.NoLink {
		hsCtx = context.Background()
	}
	hsCtx, cancel := context.WithTimeout(hsCtx, cfg.ConnectTimeout)
	defer cancel()

	res, err := runHandshake(hsCtx, addr, host, &cfg)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		id:        uuid.New(),
		cfg:       &cfg,
		addr:      addr,
		sendCh:    make(chan actorSend),
		debugCh:   make(chan debugCmd),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		conn:      res.conn,
		transport: res.transport,
	}

	go c.loop()

	if !cfg.NoLink {
		go func() {
			select {
			case <-ctx.Done():
				c.Stop()
			case <-c.doneCh:
			}
		}()
	}

	c.versions = negotiateVersions(hsCtx, c, cfg.ConnectTimeout)

	cfg.logger.Log(kplog.LogLevelInfo, "connection started", "id", c.id, "addr", addr)
	return c, nil
}

// Versions exposes the negotiated per-API version ranges (component
// C6), so callers can pick a version an external encode_request
// implementation actually knows how to speak.
func (c *Connection) Versions() map[int16]kmsg.VersionRange {
	out := make(map[int16]kmsg.VersionRange, len(c.versions.byAPI))
	for k, v := range c.versions.byAPI {
		out[k] = v
	}
	return out
}

// Addr returns the broker address this connection is attached to.
func (c *Connection) Addr() string { return c.addr }

// Socket exposes the underlying net.Conn for test/introspection
// purposes, per spec.md §4.5 item 7. Callers must not write to or
// read from it: the actor owns it exclusively.
func (c *Connection) Socket() net.Conn { return c.conn }

// Err returns the reason the connection died, or nil if it is still
// live.
func (c *Connection) Err() error {
	if v := c.deathErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Done is closed once the connection's actor has exited, for any
// reason.
func (c *Connection) Done() <-chan struct{} { return c.doneCh }

// Stop implements spec.md §6's `stop(connection)`: it closes the
// socket and terminates the actor. Safe to call more than once or
// concurrently with other methods.
func (c *Connection) Stop() {
	select {
	case <-c.doneCh:
	case c.stopCh <- struct{}{}:
		<-c.doneCh
	}
}

// SendAsync implements spec.md §6's `request_async`: it hands req to
// the actor and returns once the write has been attempted (or the
// connection is dead), without waiting for a response. If req.NoAck
// is false, a pending entry is still registered for the request, but
// its response is discarded when it arrives; SendAsync gives the
// caller no way to receive it.
func (c *Connection) SendAsync(req Request) error {
	ack := make(chan error, 1)
	send := actorSend{req: req, ackCh: ack}
	if !req.NoAck {
		send.deliver = func(Response, error) {} // no waiter; response is dropped
	}
	select {
	case c.sendCh <- send:
	case <-c.doneCh:
		return c.deadErr()
	}
	select {
	case err := <-ack:
		return err
	case <-c.doneCh:
		return c.deadErr()
	}
}

// SendSync implements spec.md §6's `request_sync`: it sends req and
// blocks up to timeout for the matching response. For a no_ack
// request, it returns as soon as the write completes.
func (c *Connection) SendSync(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	if req.NoAck {
		return Response{Ref: req.Ref, API: req.API, Version: req.Version}, c.SendAsync(req)
	}

	type result struct {
		resp Response
		err  error
	}
	resultCh := make(chan result, 1)
	send := actorSend{
		req: req,
		deliver: func(resp Response, err error) {
			select {
			case resultCh <- result{resp, err}:
			default:
			}
		},
		ackCh: make(chan error, 1),
	}

	select {
	case c.sendCh <- send:
	case <-c.doneCh:
		return Response{}, c.deadErr()
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case err := <-send.ackCh:
		if err != nil {
			return Response{}, err
		}
	case <-c.doneCh:
		return Response{}, c.deadErr()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-resultCh:
		return r.resp, r.err
	case <-timer.C:
		return Response{}, &TimeoutError{}
	case <-c.doneCh:
		return Response{}, c.deadErr()
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (c *Connection) deadErr() error {
	if err := c.Err(); err != nil {
		return &TransportDownError{Reason: err}
	}
	return &TransportDownError{Reason: ErrBrokerDead}
}

// SetDebug implements spec.md §4.5 item 6: enabling tracing causes
// every send and received frame to be logged at debug level with a
// timestamp, the current correlation ID, and a one-line rendering of
// the message. The lines go to the logger selected by Config.Debug;
// with DebugOff that logger discards them.
func (c *Connection) SetDebug(enable bool) DebugInfo {
	reply := make(chan DebugInfo, 1)
	select {
	case c.debugCh <- debugCmd{enable: enable, replyCh: reply}:
		return <-reply
	case <-c.doneCh:
		return DebugInfo{ID: c.id, Addr: c.addr}
	}
}

const maxLivenessInterval = time.Minute

func livenessInterval(requestTimeout time.Duration) time.Duration {
	half := requestTimeout / 2
	if half < maxLivenessInterval {
		return half
	}
	return maxLivenessInterval
}

// loop is the actor's single-threaded event loop (component C5).
// readLoop is its only helper goroutine, feeding raw byte chunks in;
// everything else — the pending table, the frame accumulator, the
// socket writes — is touched only from here.
func (c *Connection) loop() {
	defer close(c.doneCh)

	pending := newPendingTable()
	frames := &frameAccumulator{}
	formatter := kmsg.RequestFormatter{ClientID: c.cfg.ClientID}

	chunkCh := make(chan []byte, 8)
	readErrCh := make(chan error, 1)
	go c.readLoop(chunkCh, readErrCh)

	ticker := time.NewTicker(livenessInterval(c.cfg.RequestTimeout))
	defer ticker.Stop()

	debugging := false

	die := func(err error) {
		c.deathErr.Store(err)
		pending.drain(&TransportDownError{Reason: err})
		c.conn.Close()
		c.cfg.logger.Log(kplog.LogLevelWarn, "connection died", "id", c.id, "addr", c.addr, "err", err)
	}

	for {
		select {
		case send := <-c.sendCh:
			var id int32
			var err error
			if send.req.NoAck {
				id = pending.increment()
			} else {
				id, err = pending.add(send.req.Ref, send.req.API, send.req.Version, send.deliver)
			}
			if err != nil {
				send.ackCh <- err
				die(err)
				return
			}
			buf := formatter.AppendRaw(nil, send.req.API, send.req.Version, id, send.req.Body)
			if debugging {
				c.cfg.logger.Log(kplog.LogLevelDebug, "send", "id", c.id, "corr_id", id, "api", send.req.API, "version", send.req.Version, "no_ack", send.req.NoAck, "bytes", len(buf))
			}
			_, werr := c.conn.Write(buf)
			send.ackCh <- werr
			if werr != nil {
				if !send.req.NoAck {
					pending.delete(id)
				}
				die(&SendError{Reason: werr})
				return
			}

		case chunk, ok := <-chunkCh:
			if !ok {
				continue
			}
			fs, ferr := frames.feed(chunk)
			for _, f := range fs {
				c.dispatch(f, pending, debugging)
			}
			if ferr != nil {
				die(ferr)
				return
			}

		case err := <-readErrCh:
			die(classifyReadErr(err))
			return

		case <-ticker.C:
			if e := pending.oldest(); e != nil && time.Since(e.sendTime) > c.cfg.RequestTimeout {
				die(&RequestTimeoutError{Age: int64(time.Since(e.sendTime)), Limit: int64(c.cfg.RequestTimeout)})
				return
			}

		case cmd := <-c.debugCh:
			debugging = cmd.enable
			cmd.replyCh <- DebugInfo{
				ID:            c.id,
				Addr:          c.addr,
				Transport:     c.transportName(),
				CurrentCorrID: pending.currentCorrID(),
				PendingCount:  pending.len(),
				OldestAge:     pending.oldestAge(),
			}

		case <-c.stopCh:
			pending.drain(&TransportDownError{Reason: ErrBrokerDead})
			c.conn.Close()
			c.deathErr.Store(ErrBrokerDead)
			return
		}
	}
}

// dispatch looks up the waiter for one complete frame and delivers its
// body, per spec.md §4.5 item 2. frame includes the 4-byte length
// header; the next 4 bytes are the correlation ID.
func (c *Connection) dispatch(frame []byte, pending *pendingTable, debugging bool) {
	if len(frame) < 8 {
		return
	}
	corrID := int32(frame[4])<<24 | int32(frame[5])<<16 | int32(frame[6])<<8 | int32(frame[7])
	body := frame[8:]

	e, ok := pending.get(corrID)
	if !ok {
		// no_ack request: no waiter was ever inserted for its
		// correlation ID, so drop it (spec.md §4.5 ordering note).
		if debugging {
			c.cfg.logger.Log(kplog.LogLevelDebug, "recv (dropped, unknown corr_id)", "id", c.id, "corr_id", corrID, "bytes", len(body))
		}
		return
	}
	pending.delete(corrID)
	if debugging {
		c.cfg.logger.Log(kplog.LogLevelDebug, "recv", "id", c.id, "corr_id", corrID, "api", e.api, "bytes", len(body))
	}
	e.deliver(Response{Ref: e.ref, API: e.api, Version: e.version, Message: body}, nil)
}

// readLoop continuously reads whatever bytes are available from the
// socket and forwards them to the actor loop; it never parses frames
// itself; that stays single-owner inside loop, per spec.md §3
// invariant 4.
func (c *Connection) readLoop(chunkCh chan<- []byte, errCh chan<- error) {
	buf := make([]byte, 32*1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunkCh <- chunk:
			case <-c.doneCh:
				return
			}
		}
		if err != nil {
			select {
			case errCh <- err:
			case <-c.doneCh:
			}
			return
		}
	}
}

func classifyReadErr(err error) error {
	if errors.Is(err, io.EOF) {
		return &TransportClosedError{}
	}
	return &TransportError{Reason: err}
}

func (c *Connection) transportName() string {
	if c.transport == transportTLS {
		return "tls"
	}
	return "plain"
}

// doTyped is the internal convenience used by version negotiation and
// discovery: encode a typed kmsg.Request, send it synchronously, and
// decode the typed kmsg.Response from the raw bytes that come back.
func doTyped(ctx context.Context, c *Connection, req kmsg.Request, timeout time.Duration) (kmsg.Response, error) {
	resp := req.ResponseKind()
	resp.SetVersion(req.GetVersion())
	raw, err := c.SendSync(ctx, Request{
		Ref:     req,
		API:     req.Key(),
		Version: req.GetVersion(),
		Body:    req.AppendTo(nil),
	}, timeout)
	if err != nil {
		return nil, err
	}
	if err := resp.ReadFrom(raw.Message); err != nil {
		return nil, err
	}
	return resp, nil
}
