// Package fragmenter splits outbound application payloads into wire
// fragments and drives their reliable delivery: a FIFO send queue plus a
// (session,index)-keyed cache that Nack-driven retransmission pulls back
// onto the queue (spec.md §4.4). Grounded on the original source's
// Fragmenter and FragmentManager.
package fragmenter

import (
	"github.com/dronenet/server/internal/metrics"
	"github.com/dronenet/server/pkg/wire"
)

// Pending is one fragment queued for transmission to dest.
type Pending struct {
	Dest      wire.NodeID
	SessionID wire.SessionID
	Fragment  wire.Fragment
}

type cacheKey struct {
	session wire.SessionID
	index   wire.FragmentIndex
}

// Fragmenter owns the monotonic session id counter, the FIFO send queue,
// and the retransmit cache. It is single-owner state, touched only from
// the engine's event loop, so it holds no internal locking.
type Fragmenter struct {
	nextSession wire.SessionID
	queue       []Pending
	cache       map[cacheKey]Pending
}

// New creates a Fragmenter with session ids starting at 1, matching the
// original source's Fragmenter::new.
func New() *Fragmenter {
	return &Fragmenter{
		nextSession: 1,
		cache:       make(map[cacheKey]Pending),
	}
}

// Split breaks payload into FrameSize-sized fragments addressed to dest,
// assigns them the next session id, enqueues them for sending, and caches
// each for possible retransmission. An empty payload still consumes a
// session id and produces zero fragments, matching the original source's
// behavior of always incrementing session_id regardless of payload size.
func (f *Fragmenter) Split(payload []byte, dest wire.NodeID) []Pending {
	session := f.nextSession
	f.nextSession++

	total := 0
	if len(payload) > 0 {
		total = (len(payload) + wire.FrameSize - 1) / wire.FrameSize
	}

	out := make([]Pending, 0, total)
	for i := 0; i < total; i++ {
		start := i * wire.FrameSize
		end := start + wire.FrameSize
		if end > len(payload) {
			end = len(payload)
		}
		slice := payload[start:end]

		var frag wire.Fragment
		frag.FragmentIndex = wire.FragmentIndex(i)
		frag.TotalNFragments = uint64(total)
		frag.Length = uint8(len(slice))
		copy(frag.Data[:], slice)

		p := Pending{Dest: dest, SessionID: session, Fragment: frag}
		out = append(out, p)
		f.enqueue(p)
	}

	return out
}

func (f *Fragmenter) enqueue(p Pending) {
	key := cacheKey{session: p.SessionID, index: p.Fragment.FragmentIndex}
	f.cache[key] = p
	f.queue = append(f.queue, p)
	metrics.FragmenterCacheSize.Set(float64(len(f.cache)))
}

// Next pops the next queued fragment to send, in FIFO order. It returns
// false when the queue is empty.
func (f *Fragmenter) Next() (Pending, bool) {
	if len(f.queue) == 0 {
		return Pending{}, false
	}
	p := f.queue[0]
	f.queue = f.queue[1:]
	return p, true
}

// Ack removes a fragment from the retransmit cache after its delivery is
// confirmed. Acking a fragment not in the cache (already acked, or never
// sent) is a no-op.
func (f *Fragmenter) Ack(session wire.SessionID, index wire.FragmentIndex) {
	key := cacheKey{session: session, index: index}
	if _, ok := f.cache[key]; !ok {
		return
	}
	delete(f.cache, key)
	metrics.FragmenterCacheSize.Set(float64(len(f.cache)))
	metrics.FragmentsAckedTotal.Inc()
}

// Requeue re-enqueues a previously cached fragment for retransmission,
// driven by an inbound Nack or a routing failure (spec.md §4.4, §4.6). It
// reports false if the fragment is no longer in the cache (e.g. already
// acked — a safe no-op per spec.md §4.4's "Ack race" note). reason labels
// the requeue's metric and is either a wire.NackKind's String() or a
// routing-failure reason such as "no_path_found".
func (f *Fragmenter) Requeue(session wire.SessionID, index wire.FragmentIndex, reason string) bool {
	key := cacheKey{session: session, index: index}
	p, ok := f.cache[key]
	if !ok {
		return false
	}
	f.queue = append(f.queue, p)
	metrics.FragmentsRequeuedTotal.WithLabelValues(reason).Inc()
	return true
}

// Drop removes every cached/queued fragment belonging to session, used
// when a session is abandoned outright rather than retried.
func (f *Fragmenter) Drop(session wire.SessionID) {
	for key := range f.cache {
		if key.session == session {
			delete(f.cache, key)
		}
	}
	metrics.FragmenterCacheSize.Set(float64(len(f.cache)))

	kept := f.queue[:0]
	for _, p := range f.queue {
		if p.SessionID != session {
			kept = append(kept, p)
		}
	}
	f.queue = kept
}

// QueueLen reports the number of fragments currently queued for sending,
// for tests and status reporting.
func (f *Fragmenter) QueueLen() int {
	return len(f.queue)
}

// CacheLen reports the number of fragments awaiting acknowledgement.
func (f *Fragmenter) CacheLen() int {
	return len(f.cache)
}
