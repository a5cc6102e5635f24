package schedule

import (
	"sort"
	"time"
)

// Queue hands out actions in due order. Actions sharing a due time
// keep their insertion order.
type Queue struct {
	actions []Action
	next    int
}

// NewQueue orders a copy of actions by DueAt.
func NewQueue(actions []Action) *Queue {
	sorted := make([]Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DueAt < sorted[j].DueAt
	})
	return &Queue{actions: sorted}
}

// Len returns the number of actions not yet popped.
func (q *Queue) Len() int {
	return len(q.actions) - q.next
}

// Done reports whether every action has been popped.
func (q *Queue) Done() bool {
	return q.next >= len(q.actions)
}

// Position returns the index of the next action to pop.
func (q *Queue) Position() int {
	return q.next
}

// Total returns the number of actions the queue was built with.
func (q *Queue) Total() int {
	return len(q.actions)
}

// NextDue returns the due time of the next action.
func (q *Queue) NextDue() (time.Duration, bool) {
	if q.Done() {
		return 0, false
	}
	return q.actions[q.next].DueAt, true
}

// Pop removes and returns the next action.
func (q *Queue) Pop() (Action, bool) {
	if q.Done() {
		return Action{}, false
	}
	a := q.actions[q.next]
	q.next++
	return a, true
}

// PopDue removes and returns every action due at or before elapsed.
func (q *Queue) PopDue(elapsed time.Duration) []Action {
	start := q.next
	for q.next < len(q.actions) && q.actions[q.next].DueAt <= elapsed {
		q.next++
	}
	return q.actions[start:q.next]
}
