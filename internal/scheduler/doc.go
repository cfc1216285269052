// Package scheduler implements a fixed-size worker pool with three priority
// queues.
//
// The pool:
//   - Runs N workers started at construction time
//   - Prefers High priority work, but never serves more than 3 consecutive
//     High tasks while a Normal task is waiting
//   - Serves Low priority work only when both other queues are drained
//   - Drains all queued work on Stop instead of cancelling it
package scheduler
