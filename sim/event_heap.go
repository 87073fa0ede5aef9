package sim

import "container/heap"

// Event is a scheduled occurrence. Execute applies its state transition to
// the simulation; events never run outside the event loop.
type Event interface {
	Timestamp() int64
	Execute(s *Simulation)
}

// EventHandle identifies a scheduled event for cancellation. Once the event
// is dispatched or cancelled the handle is dead and Cancel returns false.
type EventHandle struct {
	ev  Event
	seq uint64
	// index is the position in the heap, maintained by the heap interface.
	// -1 marks a dispatched or cancelled event.
	index int
}

// eventHeap orders pending events by (timestamp, insertion sequence). The
// sequence makes same-timestamp dispatch order deterministic regardless of
// platform: ties always dispatch in scheduling order.
type eventHeap struct {
	entries []*EventHandle
}

func newEventHeap() *eventHeap {
	h := &eventHeap{}
	heap.Init(h)
	return h
}

func (h *eventHeap) Len() int { return len(h.entries) }

func (h *eventHeap) Less(i, j int) bool {
	ei, ej := h.entries[i], h.entries[j]
	if ei.ev.Timestamp() != ej.ev.Timestamp() {
		return ei.ev.Timestamp() < ej.ev.Timestamp()
	}
	return ei.seq < ej.seq
}

func (h *eventHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *eventHeap) Push(x any) {
	handle := x.(*EventHandle)
	handle.index = len(h.entries)
	h.entries = append(h.entries, handle)
}

func (h *eventHeap) Pop() any {
	old := h.entries
	n := len(old)
	handle := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	handle.index = -1
	return handle
}

// schedule inserts an event with the given insertion sequence.
func (h *eventHeap) schedule(ev Event, seq uint64) *EventHandle {
	handle := &EventHandle{ev: ev, seq: seq}
	heap.Push(h, handle)
	return handle
}

// popNext removes and returns the next pending event handle, or nil.
func (h *eventHeap) popNext() *EventHandle {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*EventHandle)
}

// peek returns the next pending handle without removing it, or nil.
func (h *eventHeap) peek() *EventHandle {
	if h.Len() == 0 {
		return nil
	}
	return h.entries[0]
}

// cancel removes a pending handle from the heap. Returns false when the
// handle was already dispatched or cancelled; timestamps of other events are
// unaffected either way.
func (h *eventHeap) cancel(handle *EventHandle) bool {
	if handle == nil || handle.index < 0 {
		return false
	}
	heap.Remove(h, handle.index)
	handle.index = -1
	return true
}
