// Package pool runs work items on a bounded set of workers.
//
// Workers pull items from a shared queue in order. Dispatch stops as soon as
// the caller's context is done or an item fails; items already handed to a
// worker always run to completion on a context detached from cancellation,
// so a write is never abandoned halfway.
package pool
