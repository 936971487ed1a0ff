// Package appearance models officer appearances flowing through the review
// pipeline.
//
// A Candidate is one tentative observation of an officer in one piece of
// media. Candidates stream in during analysis under provisional identifiers
// and are later reconciled against the server's authoritative records. The
// Buffer owns candidate identity and mutation: review decisions, override
// edits, and merge groups all route through it, and Finalize derives the
// verified set without mutating buffer state.
package appearance
