package kgo

import (
	"container/list"
	"time"
)

// reservedCorrID is never allocated by a pendingTable; it is reserved
// for the handshake engine's requests, which run before any
// pendingTable exists for the connection (spec.md §4.4).
const reservedCorrID int32 = 1<<31 - 1

// deliverFunc is invoked at most once with the response (or an error)
// for a pending request. It must not block: callers that have already
// given up (timed out locally) simply never look at the value it was
// asked to deliver.
type deliverFunc func(Response, error)

type pendingEntry struct {
	corrID   int32
	ref      any
	api      int16
	version  int16
	sendTime time.Time
	deliver  deliverFunc
}

// pendingTable is the correlation-ID multiplexer of component C2. It
// is single-owner: only the connection actor's loop goroutine touches
// it, so no internal locking is needed.
type pendingTable struct {
	next int32 // next correlation ID to allocate; wraps on int32 overflow

	byID  map[int32]*list.Element // corrID -> element wrapping *pendingEntry
	order *list.List              // insertion order, oldest at Front
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		byID:  make(map[int32]*list.Element),
		order: list.New(),
	}
}

// allocate returns the next correlation ID, skipping the reserved
// handshake value, without inserting a waiter. It is shared by add and
// increment.
func (t *pendingTable) allocate() int32 {
	id := wireCorrID(t.next)
	t.next++
	if id == reservedCorrID {
		id = wireCorrID(t.next)
		t.next++
	}
	return id
}

// wireCorrID masks the internal int32 counter down to the 31-bit
// space the wire format actually carries, so wire IDs cycle modulo
// 2^31.
func wireCorrID(n int32) int32 {
	return int32(uint32(n) & 0x7fffffff)
}

// add allocates a correlation ID and inserts a waiter for it.
//
// ErrCorrelationCollision is returned, per spec.md's stated preference
// to "detect the collision and fail fast," if the allocated ID is
// already live — which can only happen after the 31-bit ID space has
// wrapped around a connection whose oldest entries somehow outlived
// request_timeout eviction.
func (t *pendingTable) add(ref any, api, version int16, deliver deliverFunc) (int32, error) {
	id := t.allocate()
	if _, exists := t.byID[id]; exists {
		return 0, &ErrCorrelationCollision{CorrID: id}
	}
	e := &pendingEntry{corrID: id, ref: ref, api: api, version: version, sendTime: time.Now(), deliver: deliver}
	t.byID[id] = t.order.PushBack(e)
	return id, nil
}

// increment reserves a correlation ID for a no_ack request: it is
// consumed on the wire but no waiter is ever inserted for it.
func (t *pendingTable) increment() int32 {
	return t.allocate()
}

func (t *pendingTable) get(corrID int32) (*pendingEntry, bool) {
	el, ok := t.byID[corrID]
	if !ok {
		return nil, false
	}
	return el.Value.(*pendingEntry), true
}

func (t *pendingTable) delete(corrID int32) {
	el, ok := t.byID[corrID]
	if !ok {
		return
	}
	t.order.Remove(el)
	delete(t.byID, corrID)
}

// oldestAge is the age of the earliest still-pending entry, or 0 if
// the table is empty.
func (t *pendingTable) oldestAge() time.Duration {
	front := t.order.Front()
	if front == nil {
		return 0
	}
	return time.Since(front.Value.(*pendingEntry).sendTime)
}

// oldest returns the earliest still-pending entry, or nil if empty.
func (t *pendingTable) oldest() *pendingEntry {
	front := t.order.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*pendingEntry)
}

// currentCorrID returns the last correlation ID allocated, for debug
// output; it is 0 if none has been allocated yet.
func (t *pendingTable) currentCorrID() int32 {
	if t.next == 0 {
		return 0
	}
	return wireCorrID(t.next - 1)
}

// len reports the number of live pending entries.
func (t *pendingTable) len() int { return len(t.byID) }

// drain delivers err to every still-pending waiter and empties the
// table. Used when the connection dies.
func (t *pendingTable) drain(err error) {
	for el := t.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*pendingEntry)
		e.deliver(Response{Ref: e.ref, API: e.api, Version: e.version}, err)
	}
	t.byID = make(map[int32]*list.Element)
	t.order.Init()
}
