package dstarlite

import "container/heap"

// key is the lexicographic priority D*-Lite orders its open set by: k1 breaks ties
// first, k2 second.
type key struct {
	K1, K2 float64
}

func (k key) less(o key) bool {
	if k.K1 != o.K1 {
		return k.K1 < o.K1
	}
	return k.K2 < o.K2
}

func (k key) equal(o key) bool {
	return k.K1 == o.K1 && k.K2 == o.K2
}

type pqEntry struct {
	cell Cell
	key  key
}

type pqHeap []pqEntry

func (h pqHeap) Len() int            { return len(h) }
func (h pqHeap) Less(i, j int) bool  { return h[i].key.less(h[j].key) }
func (h pqHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pqHeap) Push(x interface{}) { *h = append(*h, x.(pqEntry)) }
func (h *pqHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// priorityQueue is a lazy-delete binary heap: a classical D*-Lite open set decreases
// keys in place, which container/heap cannot do directly. Instead every insert/update
// pushes a fresh entry and records the cell's current key in index; on pop, entries
// whose key doesn't match index are stale and are discarded rather than returned.
type priorityQueue struct {
	h     pqHeap
	index map[Cell]key
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{index: make(map[Cell]key)}
}

func (q *priorityQueue) contains(c Cell) bool {
	_, ok := q.index[c]
	return ok
}

func (q *priorityQueue) insert(c Cell, k key) {
	q.index[c] = k
	heap.Push(&q.h, pqEntry{cell: c, key: k})
}

// update replaces c's key; it is equivalent to insert since both just record the new
// current key and push a new entry, leaving any prior entries for c to be discarded
// lazily on pop.
func (q *priorityQueue) update(c Cell, k key) {
	q.insert(c, k)
}

func (q *priorityQueue) remove(c Cell) {
	delete(q.index, c)
}

// prune discards stale heap entries until the top entry matches its cell's current
// key, or the heap is empty.
func (q *priorityQueue) prune() {
	for len(q.h) > 0 {
		top := q.h[0]
		if cur, ok := q.index[top.cell]; ok && cur.equal(top.key) {
			return
		}
		heap.Pop(&q.h)
	}
}

func (q *priorityQueue) isEmpty() bool {
	q.prune()
	return len(q.h) == 0
}

func (q *priorityQueue) topKey() key {
	q.prune()
	return q.h[0].key
}

func (q *priorityQueue) top() Cell {
	q.prune()
	return q.h[0].cell
}

func (q *priorityQueue) pop() Cell {
	q.prune()
	e := heap.Pop(&q.h).(pqEntry)
	delete(q.index, e.cell)
	return e.cell
}
