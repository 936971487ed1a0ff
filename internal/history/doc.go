// Package history keeps a local journal of dispatched submissions and their
// outcomes in SQLite. The journal is bookkeeping for the operator, not
// workflow state: nothing in it is read back to resume an analysis. A file
// lock next to the database enforces a single writer across processes.
package history
