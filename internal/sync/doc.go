// Package sync groups the stages of tree synchronization.
//
// A sync runs as a pipeline of subpackages:
//   - scanner: lists both trees into filtered snapshots
//   - comparator: decides whether an entry present on both sides changed
//   - planner: diffs the snapshots into an ordered list of actions
//   - executor: applies the actions on a bounded worker pool
//   - sync: the Manager driving the stages and producing the report
package sync
