// Package backend wraps the accountability platform's HTTP API.
//
// The Client exposes typed calls for every endpoint the pipeline consumes:
// media upload, URL and bulk ingestion, pending appearance fetches, batch
// verification updates, and the protest listing. Non-2xx responses become
// StatusError values whose message is the server-provided detail in
// development and fixed phrasing keyed by status code in production. Network
// failures propagate unchanged; malformed response bodies surface as
// DecodeError, distinct from HTTP errors.
package backend
