// Package intake validates and dispatches the three submission shapes: a
// direct file upload, a single URL with questionnaire answers, and a bulk
// URL list. Every dispatch carries the anti-automation token; submissions
// that fail validation never reach the wire.
package intake
