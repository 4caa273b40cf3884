package receiptquery

import (
	"fmt"
	"strings"

	"github.com/voltcharge/receiptengine/money"
	"github.com/voltcharge/receiptengine/receipt"
)

// BuildSQL emits the S3 Select expression equivalent to q's equality and
// amount-bound filters, evaluated against one gzip-compressed NDJSON
// object bound to the alias s3object. It must stay in lockstep with
// MatchesClient: the two predicates are required to agree on every
// record.
func BuildSQL(q receipt.Query) string {
	var clauses []string

	if q.SessionID != "" {
		clauses = append(clauses, fmt.Sprintf("s.session_id = %s", sqlQuote(q.SessionID)))
	}
	if q.ConsumerID != "" {
		clauses = append(clauses, fmt.Sprintf("s.consumer_id = %s", sqlQuote(q.ConsumerID)))
	}
	if q.CardLastFour != "" {
		clauses = append(clauses, fmt.Sprintf("s.card_last_four = %s", sqlQuote(q.CardLastFour)))
	}
	if q.ReceiptNumber != "" {
		clauses = append(clauses, fmt.Sprintf("s.receipt_number = %s", sqlQuote(q.ReceiptNumber)))
	}
	if q.AmountMin != nil {
		clauses = append(clauses, fmt.Sprintf("s.amount_pence >= %d", money.FromMajor(*q.AmountMin).ToMinor()))
	}
	if q.AmountMax != nil {
		clauses = append(clauses, fmt.Sprintf("s.amount_pence <= %d", money.FromMajor(*q.AmountMax).ToMinor()))
	}

	base := "SELECT * FROM s3object s"
	if len(clauses) == 0 {
		return base
	}
	return base + " WHERE " + strings.Join(clauses, " AND ")
}

// MatchesClient is the client-side predicate equivalent to BuildSQL(q),
// evaluated against an already-decoded record. It falls back to parsing
// m.Amount when m.AmountPence is zero, to preserve read compatibility
// with records written before amount_pence existed.
func MatchesClient(q receipt.Query, m receipt.Metadata) bool {
	if q.SessionID != "" && m.SessionID != q.SessionID {
		return false
	}
	if q.ConsumerID != "" && m.ConsumerID != q.ConsumerID {
		return false
	}
	if q.CardLastFour != "" && m.CardLastFour != q.CardLastFour {
		return false
	}
	if q.ReceiptNumber != "" && m.ReceiptNumber != q.ReceiptNumber {
		return false
	}

	if q.AmountMin != nil || q.AmountMax != nil {
		pence := m.AmountPence
		if pence == 0 {
			if p, err := money.Parse(m.Amount); err == nil {
				pence = p.ToMinor()
			}
		}
		if q.AmountMin != nil && pence < money.FromMajor(*q.AmountMin).ToMinor() {
			return false
		}
		if q.AmountMax != nil && pence > money.FromMajor(*q.AmountMax).ToMinor() {
			return false
		}
	}

	return true
}

// sqlQuote escapes a string literal for the S3 Select SQL dialect by
// doubling embedded single quotes.
func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
