package cache

// handle addresses a node slot in the recency list arena.
//
// Handles are stable for the lifetime of an entry; a slot is only reused
// after free has returned it to the free list.
type handle int32

const (
	nilHandle  handle = -1
	headHandle handle = 0 // sentinel: prev of the most recently used node
	tailHandle handle = 1 // sentinel: next of the least recently used node
)

// node is one slot of the arena. Sentinels never carry a key or value.
type node struct {
	key   string
	value string
	prev  handle
	next  handle
}

// recencyList is an intrusive doubly linked list over an arena of nodes.
//
// Front (head.next) = most recently used, back (tail.prev) = least recently used.
// Every method is O(1). Callers must only pass handles that are currently
// linked into this list (or, for insertFront, freshly allocated ones).
type recencyList struct {
	nodes []node
	free  []handle
	size  int
}

func newRecencyList() *recencyList {
	l := &recencyList{
		nodes: make([]node, 2, 16),
	}
	l.nodes[headHandle] = node{prev: nilHandle, next: tailHandle}
	l.nodes[tailHandle] = node{prev: headHandle, next: nilHandle}
	return l
}

// alloc reserves a slot for key/value. The node is not linked yet.
func (l *recencyList) alloc(key, value string) handle {
	n := node{key: key, value: value, prev: nilHandle, next: nilHandle}
	if k := len(l.free); k > 0 {
		h := l.free[k-1]
		l.free = l.free[:k-1]
		l.nodes[h] = n
		return h
	}
	l.nodes = append(l.nodes, n)
	return handle(len(l.nodes) - 1)
}

// release returns an unlinked slot to the free list and drops its payload
// so the strings can be collected.
func (l *recencyList) release(h handle) {
	l.nodes[h] = node{prev: nilHandle, next: nilHandle}
	l.free = append(l.free, h)
}

func (l *recencyList) insertFront(h handle) {
	first := l.nodes[headHandle].next
	l.nodes[h].prev = headHandle
	l.nodes[h].next = first
	l.nodes[first].prev = h
	l.nodes[headHandle].next = h
	l.size++
}

func (l *recencyList) remove(h handle) {
	n := &l.nodes[h]
	l.nodes[n.prev].next = n.next
	l.nodes[n.next].prev = n.prev
	n.prev = nilHandle
	n.next = nilHandle
	l.size--
}

// removeBack unlinks the least recently used node. ok is false when the
// list holds no live nodes.
func (l *recencyList) removeBack() (h handle, ok bool) {
	h = l.nodes[tailHandle].prev
	if h == headHandle {
		return nilHandle, false
	}
	l.remove(h)
	return h, true
}

func (l *recencyList) moveToFront(h handle) {
	if l.nodes[headHandle].next == h {
		return
	}
	n := &l.nodes[h]
	l.nodes[n.prev].next = n.next
	l.nodes[n.next].prev = n.prev

	first := l.nodes[headHandle].next
	n.prev = headHandle
	n.next = first
	l.nodes[first].prev = h
	l.nodes[headHandle].next = h
}

func (l *recencyList) empty() bool {
	return l.nodes[headHandle].next == tailHandle
}

func (l *recencyList) len() int {
	return l.size
}

func (l *recencyList) at(h handle) *node {
	return &l.nodes[h]
}

// front returns the handle after head, or tailHandle when empty.
func (l *recencyList) front() handle {
	return l.nodes[headHandle].next
}

func (l *recencyList) next(h handle) handle {
	return l.nodes[h].next
}
