// Package reconcile merges the candidate buffer built from the live analysis
// stream with the authoritative pending-appearance list the backend holds
// once analysis has persisted. Server records win on detection fields,
// reviewer state is preserved, and a failed or empty fetch degrades to the
// streamed buffer instead of erroring.
package reconcile
