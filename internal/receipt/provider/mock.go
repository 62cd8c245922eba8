package provider

import (
	"context"
	"time"

	"listou/internal/receipt/models"
)

// MockClient serves deterministic receipt data with a configurable latency to
// mimic real-world aggregator calls. Used in demo mode and tests.
type MockClient struct {
	Latency  time.Duration
	Receipts map[string][]models.RawReceipt
	Err      error
}

func (c *MockClient) Fetch(ctx context.Context, accessKey string) ([]models.RawReceipt, error) {
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, NewError(ErrorTimeout, "mock aggregator call timed out", ctx.Err())
		}
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Receipts[accessKey], nil
}
