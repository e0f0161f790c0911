package sched

// sleepQueue is a min-heap of sleeping threads ordered by wake deadline.
// All access happens under the scheduler's sleep spinlock.
type sleepQueue []*Thread

func (q sleepQueue) Len() int { return len(q) }

func (q sleepQueue) Less(i, j int) bool { return q[i].wakeAt < q[j].wakeAt }

func (q sleepQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *sleepQueue) Push(x any) { *q = append(*q, x.(*Thread)) }

func (q *sleepQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
