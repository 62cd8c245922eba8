// Package transform maps raw vendor payloads to the canonical receipt
// aggregate. The output is fully populated and unsaved; ownership is stamped
// here, not at persistence time.
package transform

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"listou/internal/nfce/accesskey"
	"listou/internal/nfce/dates"
	"listou/internal/receipt/models"
)

// DefaultCategory is assigned to every line until finer classification exists.
const DefaultCategory = "Mercearia"

// Error marks a vendor payload the pipeline cannot reshape. The underlying
// error carries the offending value.
type Error struct {
	Field string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Field, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Receipt reshapes raw into a canonical Receipt and its line items, stamped
// with ownerID. A date that fails normalization aborts the whole transform;
// no partial receipt is ever produced.
func Receipt(raw models.RawReceipt, ownerID uuid.UUID, now time.Time) (models.Receipt, []models.LineItem, error) {
	issueDate, err := dates.ToISO(raw.IssueDate)
	if err != nil {
		return models.Receipt{}, nil, &Error{Field: "issue_date", Cause: err}
	}

	receiptID := uuid.New()
	items := make([]models.LineItem, 0, len(raw.Lines))
	computedTotal := 0.0
	for _, line := range raw.Lines {
		total := line.Quantity * line.UnitValue
		if line.LineTotal != nil {
			total = *line.LineTotal
		}
		computedTotal += total
		items = append(items, models.LineItem{
			ID:              uuid.New(),
			ReceiptID:       receiptID,
			Description:     line.Description,
			DescriptionNorm: NormalizeDescription(line.Description),
			Quantity:        line.Quantity,
			Unit:            line.Unit,
			UnitValue:       line.UnitValue,
			TotalValue:      total,
			Category:        DefaultCategory,
		})
	}

	// The aggregator sometimes omits or zeroes the receipt total; the line sum
	// is the fallback.
	finalTotal := computedTotal
	if !math.IsNaN(raw.Total) && !math.IsInf(raw.Total, 0) && raw.Total > 0 {
		finalTotal = raw.Total
	}

	discount := 0.0
	if raw.Discount != nil {
		discount = *raw.Discount
	}
	paid := finalTotal
	if raw.Paid != nil {
		paid = *raw.Paid
	}

	receipt := models.Receipt{
		ID:            receiptID,
		OwnerID:       ownerID,
		AccessKey:     raw.AccessKey,
		IssuerName:    raw.Issuer.Name,
		IssuerCNPJ:    accesskey.NormalizeCNPJ(raw.Issuer.CNPJ),
		IssueDate:     issueDate,
		TotalValue:    finalTotal,
		DiscountValue: discount,
		PaidValue:     paid,
		CreatedAt:     now,
	}
	return receipt, items, nil
}
