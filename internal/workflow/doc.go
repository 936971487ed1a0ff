// Package workflow drives a submission from dispatch through analysis,
// review, detail editing, preview, and commit. The controller owns the
// current stage, the analysis task, the media record, and the candidate
// buffer; transitions are guarded by an explicit table, and responses that
// arrive after a cancel or reset never mutate state.
package workflow
