// Package receipt defines the canonical data shapes exchanged between the
// write pipeline, the query engine, and external callers.
package receipt

// Metadata is the canonical index record for one receipt.
type Metadata struct {
	SessionID     string `json:"session_id"`
	ConsumerID    string `json:"consumer_id"`
	ReceiptNumber string `json:"receipt_number"`
	PaymentDate   string `json:"payment_date"`
	CardLastFour  string `json:"card_last_four"`
	Amount        string `json:"amount"`
	AmountPence   int64  `json:"amount_pence"`
	PDFKey        string `json:"pdf_key"`
	MetadataKey   string `json:"metadata_key"`
	CreatedAt     string `json:"created_at"`
}

// Query is the input surface consumed from external handlers.
type Query struct {
	SessionID     string `json:"session_id,omitempty"`
	ConsumerID    string `json:"consumer_id,omitempty"`
	CardLastFour  string `json:"card_last_four,omitempty"`
	ReceiptNumber string `json:"receipt_number,omitempty"`

	AmountMin *float64 `json:"amount_min,omitempty"`
	AmountMax *float64 `json:"amount_max,omitempty"`

	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`

	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// HasRequiredField reports whether Q carries at least one of the fields
// the engine requires before it will scan any shard.
func (q Query) HasRequiredField() bool {
	return q.SessionID != "" || q.ConsumerID != "" || q.ReceiptNumber != "" ||
		q.DateFrom != "" || q.CardLastFour != ""
}

// Result is the paginated, filtered output of a query.
type Result struct {
	Records      []Metadata `json:"records"`
	ScannedDates []string   `json:"scanned_dates"`
	TotalCount   int        `json:"total_count"`
	NextCursor   string     `json:"next_cursor,omitempty"`
	HasMore      bool       `json:"has_more"`
	PageSize     int        `json:"page_size"`
}

// PartialMetadata is the caller-supplied input to the write pipeline: a
// Metadata record lacking the fields the pipeline itself derives.
type PartialMetadata struct {
	SessionID     string `json:"session_id"`
	ConsumerID    string `json:"consumer_id"`
	ReceiptNumber string `json:"receipt_number"`
	PaymentDate   string `json:"payment_date"`
	CardLastFour  string `json:"card_last_four"`
	Amount        string `json:"amount"`
}

// WriteResult is returned by the write pipeline on success.
type WriteResult struct {
	PDFKey      string `json:"pdf_key"`
	MetadataKey string `json:"metadata_key"`
	IndexKey    string `json:"index_key"`
}
