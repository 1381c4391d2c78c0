// Package task tracks a long-running backend task from submission to a
// terminal state.
//
// A Controller owns one tracking session at a time. It polls the backend
// through a Scheduler, normalizes every answer, reports wall-clock elapsed
// time through an ElapsedTracker and offers the email side channel once the
// task has run for longer than the notification threshold. Completion and
// failure callbacks fire at most once per session, and responses to polls
// dispatched before a Cancel or a new Start are discarded by a generation
// fence.
package task
