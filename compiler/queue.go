package compiler

import "container/heap"

// reparseItem is one entry of the reparse priority queue (spec.md §4.4):
// a path parsed at least once that still has unresolved dependencies,
// ordered by fewest outstanding dependencies first. index is maintained by
// container/heap for O(log n) priority updates.
type reparseItem struct {
	path    string
	pending int
	index   int
}

// reparsePQ is a min-heap over reparseItem.pending, mirroring
// dijkstra.go's nodeItem/nodePQ shape.
type reparsePQ []*reparseItem

func (pq reparsePQ) Len() int { return len(pq) }

func (pq reparsePQ) Less(i, j int) bool { return pq[i].pending < pq[j].pending }

func (pq reparsePQ) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push is called by heap.Push; x must be of type *reparseItem.
func (pq *reparsePQ) Push(x interface{}) {
	item := x.(*reparseItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

// Pop is called by heap.Pop; returns interface{} holding a *reparseItem.
func (pq *reparsePQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// reparseQueue wraps reparsePQ with path-keyed lookup, so a pending-count
// update (discoverDependency, resolveDependency) can find and re-heapify
// an existing entry instead of duplicating it.
type reparseQueue struct {
	pq    reparsePQ
	index map[string]*reparseItem
}

func newReparseQueue() *reparseQueue {
	return &reparseQueue{index: make(map[string]*reparseItem)}
}

// upsert inserts path at the given pending count, or updates its count and
// re-heapifies if it is already queued.
func (q *reparseQueue) upsert(path string, pending int) {
	if item, ok := q.index[path]; ok {
		item.pending = pending
		heap.Fix(&q.pq, item.index)
		return
	}
	item := &reparseItem{path: path, pending: pending}
	q.index[path] = item
	heap.Push(&q.pq, item)
}

// remove drops path from the queue entirely, if present.
func (q *reparseQueue) remove(path string) {
	item, ok := q.index[path]
	if !ok {
		return
	}
	heap.Remove(&q.pq, item.index)
	delete(q.index, path)
}

// peek returns the path with the fewest pending dependencies, without
// removing it.
func (q *reparseQueue) peek() (string, bool) {
	if len(q.pq) == 0 {
		return "", false
	}
	return q.pq[0].path, true
}

// len reports how many paths are currently queued for reparse.
func (q *reparseQueue) len() int { return len(q.pq) }
