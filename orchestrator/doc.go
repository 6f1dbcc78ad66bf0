// Package orchestrator starts OS processes as supervised subagents.
//
// Launch admits a command with the supervisor before starting it, so a
// rejected command never runs, and hands the supervisor a handle that
// signals the whole process group. Pool runs a batch of commands with the
// supervisor's concurrency limit, retrying admission while capacity is full.
package orchestrator
