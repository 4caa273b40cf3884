// Package keys computes the deterministic object-store key scheme used
// throughout the receipt engine. Keys are always derived, never stored;
// every function here is a pure string transformation with no I/O.
package keys

import (
	"strings"

	"github.com/google/uuid"
)

// PDFKey returns the object key for a session's PDF document.
func PDFKey(sessionID string) string {
	return "pdfs/" + sessionID + ".pdf"
}

// MetadataKey returns the object key for a session's metadata sidecar.
func MetadataKey(sessionID string) string {
	return "metadata/" + sessionID + ".json"
}

// IndexPrefix returns the date-partitioned index prefix for a payment date
// formatted as YYYY-MM-DD.
func IndexPrefix(paymentDate string) string {
	return "index/dt=" + paymentDate + "/"
}

// PartKey returns a fresh part-file key under prefix. Each write picks a
// new UUID so concurrent writers on the same date never collide.
func PartKey(prefix string) string {
	return prefix + "part-" + uuid.NewString() + ".ndjson.gz"
}

// IsPartKey reports whether key matches the part-file shape
// index/dt=*/part-*.ndjson.gz, using explicit path-component parsing
// rather than a regular expression.
func IsPartKey(key string) bool {
	const prefix = "index/dt="
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	rest := key[len(prefix):]

	dtPart, tail, ok := strings.Cut(rest, "/")
	if !ok || dtPart == "" {
		return false
	}

	const fileSuffix = ".ndjson.gz"
	const filePrefix = "part-"
	if !strings.HasPrefix(tail, filePrefix) || !strings.HasSuffix(tail, fileSuffix) {
		return false
	}
	uid := strings.TrimSuffix(strings.TrimPrefix(tail, filePrefix), fileSuffix)
	return uid != "" && !strings.Contains(uid, "/")
}

// PartitionDate extracts the YYYY-MM-DD partition date from a valid part
// key. The second return value is false if key is not a part key.
func PartitionDate(key string) (string, bool) {
	if !IsPartKey(key) {
		return "", false
	}
	const prefix = "index/dt="
	rest := key[len(prefix):]
	date, _, _ := strings.Cut(rest, "/")
	return date, true
}
