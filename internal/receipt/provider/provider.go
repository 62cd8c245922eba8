// Package provider is the opaque boundary to the external government-data
// aggregator. One call in, zero or one receipts out.
package provider

import (
	"context"

	"listou/internal/receipt/models"
)

// Client fetches structured receipt data for an access key. Implementations
// issue exactly one outbound call per invocation and never retry internally;
// retry policy belongs to the caller. An empty slice means the aggregator had
// no record for the key.
type Client interface {
	Fetch(ctx context.Context, accessKey string) ([]models.RawReceipt, error)
}
