package services

import (
	"container/heap"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// queuedJob is one pending entry in the coordinator's priority queue
type queuedJob struct {
	job  *domain.SyncJob
	opts domain.SyncOptions

	// seq preserves insertion order within equal priorities
	seq   uint64
	index int
}

// jobQueue is a max-heap ordered by descending priority, stable by
// insertion order within equal priority. Only the coordinator touches it,
// always inside its critical section.
type jobQueue struct {
	items []*queuedJob
	next  uint64
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	heap.Init(q)
	return q
}

func (q *jobQueue) Len() int { return len(q.items) }

func (q *jobQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.job.Priority != b.job.Priority {
		return a.job.Priority > b.job.Priority
	}
	return a.seq < b.seq
}

func (q *jobQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *jobQueue) Push(x any) {
	qj := x.(*queuedJob)
	qj.index = len(q.items)
	q.items = append(q.items, qj)
}

func (q *jobQueue) Pop() any {
	old := q.items
	n := len(old)
	qj := old[n-1]
	old[n-1] = nil
	qj.index = -1
	q.items = old[:n-1]
	return qj
}

// push enqueues a job, assigning its insertion sequence
func (q *jobQueue) push(job *domain.SyncJob, opts domain.SyncOptions) {
	qj := &queuedJob{job: job, opts: opts, seq: q.next}
	q.next++
	heap.Push(q, qj)
}

// pop removes and returns the highest-priority entry, or nil if empty
func (q *jobQueue) pop() *queuedJob {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*queuedJob)
}

// reinsert returns a previously popped entry to the queue, keeping its
// original sequence number
func (q *jobQueue) reinsert(qj *queuedJob) {
	heap.Push(q, qj)
}

// remove removes the entry for jobID, returning it or nil if not queued
func (q *jobQueue) remove(jobID string) *queuedJob {
	for _, qj := range q.items {
		if qj.job.ID == jobID {
			return heap.Remove(q, qj.index).(*queuedJob)
		}
	}
	return nil
}
