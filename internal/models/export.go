package models

import "time"

// ExportRecord describes one completed payload export.
type ExportRecord struct {
	ID               string    `json:"id"`
	TransactionID    string    `json:"transaction_id"`
	ReferenceDate    string    `json:"reference_date"`
	TransactionPairs int       `json:"transaction_pairs"`
	DiscountPairs    int       `json:"discount_pairs"`
	Diagnostics      int       `json:"diagnostics"`
	FilePath         string    `json:"file_path,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
