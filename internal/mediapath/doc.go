// Package mediapath normalizes backend-provided media paths into relative
// URLs that are safe to append to a trusted CDN base.
//
// The backend returns crop and media paths as opaque strings. Sanitize strips
// directory traversal sequences (including percent-encoded spellings), the
// legacy data/ prefix, and leading or doubled slashes before the path is ever
// used to build a URL. Absolute http(s) URLs pass through verbatim because
// the CDN occasionally returns fully-qualified links.
//
// The package is a pure string contract: it never fetches or inspects the
// bytes behind a path.
package mediapath
