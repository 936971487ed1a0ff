// Package review derives the reviewer-facing projections of the candidate
// buffer: the grouped entry list, summary counts, display names, and
// unmerge proposals. Projections are pure over buffer snapshots and never
// mutate review state.
package review
