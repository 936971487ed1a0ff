// Package commit turns the verified review set into one batch update against
// the backend. Provisional appearances are filtered out, override fields are
// coalesced with detection fallbacks, and per-item server outcomes are
// reported back without asserting partial success on transport failure.
package commit
