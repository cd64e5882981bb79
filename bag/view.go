// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import "container/heap"

// View selects a set of connections, across one or more open bags, to be
// read back in time order. It corresponds to rosbag::View, generalized to
// merge several bags the way the teacher's streamfile.Merge merges several
// event streams: each source contributes its own sorted per-connection
// index, and Query pulls from all of them through a min-heap so the
// combined output is globally time-ordered without concatenating and
// re-sorting everything up front.
type View struct {
	engines []*Engine
	topics  map[string]bool // nil means "every topic"
	start   Time
	end     Time
}

// NewView constructs a View over engines, which must already be open for
// reading. If topics is non-empty, only connections on those topics are
// included; an empty start/end (the zero Time) means unbounded on that
// side.
func NewView(engines []*Engine, topics []string, start, end Time) *View {
	v := &View{engines: engines, start: start, end: end}
	if end.IsZero() {
		v.end = timeMaxSentinel
	}
	if len(topics) > 0 {
		v.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			v.topics[t] = true
		}
	}
	return v
}

// Size returns the total number of messages the view would yield, summed
// across every selected connection in every source bag.
func (v *View) Size() int {
	total := 0
	for _, cur := range v.cursors() {
		total += len(cur.entries)
	}
	return total
}

// cursor tracks one connection's position within a single bag's merged
// read order.
type cursor struct {
	engine  *Engine
	connID  uint32
	entries connectionIndex
	pos     int
}

func (v *View) cursors() []*cursor {
	var cursors []*cursor
	for _, e := range v.engines {
		for connID, ci := range e.connections {
			if v.topics != nil && !v.topics[ci.Topic] {
				continue
			}
			idx := e.connectionIndexes[connID]
			lo := idx.firstAtOrAfter(v.start)
			hi := idx.firstAfter(v.end)
			if lo >= hi {
				continue
			}
			cursors = append(cursors, &cursor{engine: e, connID: connID, entries: idx[lo:hi], pos: 0})
		}
	}
	return cursors
}

// cursorHeap orders active cursors by their next unread entry's time,
// breaking ties by (chunk_pos, offset) and finally by connection id, so
// iteration order is deterministic when two sources share a timestamp.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	ei, ej := h[i].entries[h[i].pos], h[j].entries[h[j].pos]
	if c := ei.Time.Compare(ej.Time); c != 0 {
		return c < 0
	}
	if ei.ChunkPos != ej.ChunkPos {
		return ei.ChunkPos < ej.ChunkPos
	}
	if ei.Offset != ej.Offset {
		return ei.Offset < ej.Offset
	}
	return h[i].connID < h[j].connID
}
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Query is a forward-only iterator over a View's messages in time order.
type Query struct {
	h cursorHeap
}

// Query starts a fresh iteration over v.
func (v *View) Query() *Query {
	q := &Query{}
	for _, cur := range v.cursors() {
		q.h = append(q.h, cur)
	}
	heap.Init(&q.h)
	return q
}

// Next returns the next message in time order, or ok == false once the
// view is exhausted.
func (q *Query) Next() (msg *MessageInstance, ok bool, err error) {
	if q.h.Len() == 0 {
		return nil, false, nil
	}
	cur := q.h[0]
	entry := cur.entries[cur.pos]

	msg, err = cur.engine.ReadMessage(cur.connID, entry)
	if err != nil {
		return nil, false, err
	}

	cur.pos++
	if cur.pos < len(cur.entries) {
		heap.Fix(&q.h, 0)
	} else {
		heap.Pop(&q.h)
	}
	return msg, true, nil
}
