// Package models defines the canonical receipt aggregate and the vendor-shaped
// payload it is built from.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RawIssuer is the vendor-shaped issuer block.
type RawIssuer struct {
	Name string
	CNPJ string
}

// RawLine is one product line as the aggregator returns it. LineTotal is
// optional; absent values are recomputed from quantity and unit value.
type RawLine struct {
	Description string
	Quantity    float64
	Unit        string
	UnitValue   float64
	LineTotal   *float64
}

// RawReceipt is the vendor payload for one receipt. It is ephemeral: it exists
// only inside a pipeline run and is never persisted.
type RawReceipt struct {
	AccessKey string
	Issuer    RawIssuer
	IssueDate string // localized or ISO date string, normalized by transform
	Lines     []RawLine
	Total     float64
	Discount  *float64
	Paid      *float64
}

// Receipt is the canonical persisted header. Immutable once created except
// for full deletion.
type Receipt struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	AccessKey     string    `json:"access_key"`
	IssuerName    string    `json:"issuer_name"`
	IssuerCNPJ    string    `json:"issuer_cnpj"`
	IssueDate     string    `json:"issue_date"` // ISO YYYY-MM-DD
	TotalValue    float64   `json:"total_value"`
	DiscountValue float64   `json:"discount_value"`
	PaidValue     float64   `json:"paid_value"`
	CreatedAt     time.Time `json:"created_at"`
}

// LineItem is one persisted receipt line. Created only alongside its parent.
type LineItem struct {
	ID              uuid.UUID `json:"id"`
	ReceiptID       uuid.UUID `json:"receipt_id"`
	Description     string    `json:"description"`
	DescriptionNorm string    `json:"description_norm"`
	Quantity        float64   `json:"quantity"`
	Unit            string    `json:"unit"`
	UnitValue       float64   `json:"unit_value"`
	TotalValue      float64   `json:"total_value"`
	Category        string    `json:"category"`
}
