package receiptquery

import "strings"

// EncodeCursor builds the opaque pagination token for a record at
// paymentDate with the given sessionID.
func EncodeCursor(paymentDate, sessionID string) string {
	return paymentDate + ":" + sessionID
}

// DecodeCursor splits an external cursor into its payment date and session
// ID, splitting on the first colon only since sessionID may itself contain
// colons. An invalid or empty cursor reports ok=false; callers treat that
// as "start from the beginning".
func DecodeCursor(cursor string) (paymentDate, sessionID string, ok bool) {
	if cursor == "" {
		return "", "", false
	}
	date, rest, found := strings.Cut(cursor, ":")
	if !found || date == "" || rest == "" {
		return "", "", false
	}
	return date, rest, true
}
