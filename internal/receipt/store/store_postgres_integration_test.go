//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"listou/internal/receipt/models"
	"listou/internal/receipt/store"
	"listou/pkg/testutil/containers"
)

const schema = `
CREATE TABLE receipts (
    id             UUID PRIMARY KEY,
    owner_id       UUID NOT NULL,
    access_key     CHAR(44) NOT NULL,
    issuer_name    TEXT NOT NULL,
    issuer_cnpj    TEXT NOT NULL,
    issue_date     DATE NOT NULL,
    total_value    NUMERIC(12,2) NOT NULL,
    discount_value NUMERIC(12,2) NOT NULL DEFAULT 0,
    paid_value     NUMERIC(12,2) NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    UNIQUE (owner_id, access_key)
);

CREATE TABLE receipt_items (
    id               UUID PRIMARY KEY,
    receipt_id       UUID NOT NULL REFERENCES receipts (id),
    description      TEXT NOT NULL,
    description_norm TEXT NOT NULL,
    quantity         NUMERIC(12,3) NOT NULL,
    unit             TEXT NOT NULL DEFAULT '',
    unit_value       NUMERIC(12,2) NOT NULL,
    total_value      NUMERIC(12,2) NOT NULL,
    category         TEXT NOT NULL DEFAULT ''
);
`

const testAccessKey = "35230812345678000123550010000000011000000011"

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
	ctx   context.Context
	owner uuid.UUID
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	_, err := s.pg.DB.ExecContext(s.ctx, schema)
	s.Require().NoError(err)
	s.store = store.NewPostgresStore(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.owner = uuid.New()
	_, err := s.pg.DB.ExecContext(s.ctx, `TRUNCATE receipt_items, receipts`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) receipt(accessKey string) models.Receipt {
	return models.Receipt{
		OwnerID:       s.owner,
		AccessKey:     accessKey,
		IssuerName:    "Mercado Central LTDA",
		IssuerCNPJ:    "12345678000195",
		IssueDate:     "2024-11-10",
		TotalValue:    17.00,
		DiscountValue: 0,
		PaidValue:     17.00,
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

func (s *PostgresStoreSuite) items() []models.LineItem {
	return []models.LineItem{
		{Description: "Arroz Branco 5kg", DescriptionNorm: "arroz branco 5kg", Quantity: 1, Unit: "UN", UnitValue: 10.00, TotalValue: 10.00, Category: "Mercearia"},
		{Description: "Café Torrado 500g", DescriptionNorm: "cafe torrado 500g", Quantity: 2, Unit: "UN", UnitValue: 3.50, TotalValue: 7.00, Category: "Mercearia"},
	}
}

func (s *PostgresStoreSuite) TestSaveAndGet() {
	r := s.receipt(testAccessKey)
	id, err := s.store.SaveWithItems(s.ctx, &r, s.items())
	s.Require().NoError(err)

	got, items, err := s.store.GetByID(s.ctx, s.owner, id)
	s.Require().NoError(err)
	s.Equal(testAccessKey, got.AccessKey)
	s.Equal("2024-11-10", got.IssueDate)
	s.Equal(17.00, got.TotalValue)
	s.Require().Len(items, 2)
	s.Equal("Arroz Branco 5kg", items[0].Description)
	s.Equal(id, items[0].ReceiptID)
	s.Equal(7.00, items[1].TotalValue)
}

func (s *PostgresStoreSuite) TestUniqueConstraintMapsToDuplicate() {
	first := s.receipt(testAccessKey)
	_, err := s.store.SaveReceipt(s.ctx, &first)
	s.Require().NoError(err)

	second := s.receipt(testAccessKey)
	second.ID = uuid.Nil
	_, err = s.store.SaveReceipt(s.ctx, &second)
	s.ErrorIs(err, store.ErrDuplicate)

	exists, err := s.store.Exists(s.ctx, s.owner, testAccessKey)
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.Exists(s.ctx, uuid.New(), testAccessKey)
	s.Require().NoError(err)
	s.False(exists, "uniqueness is per owner")
}

func (s *PostgresStoreSuite) TestSaveWithItemsRollsBackOnDuplicate() {
	first := s.receipt(testAccessKey)
	_, err := s.store.SaveWithItems(s.ctx, &first, s.items())
	s.Require().NoError(err)

	second := s.receipt(testAccessKey)
	second.ID = uuid.Nil
	_, err = s.store.SaveWithItems(s.ctx, &second, s.items())
	s.ErrorIs(err, store.ErrDuplicate)

	var itemCount int
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`SELECT count(*) FROM receipt_items`).Scan(&itemCount))
	s.Equal(2, itemCount, "the failed save left no orphan items")
}

func (s *PostgresStoreSuite) TestListByOwnerNewestFirst() {
	base := time.Now().UTC().Truncate(time.Millisecond)
	older := s.receipt("11111111111111111111111111111111111111111111")
	older.CreatedAt = base.Add(-time.Hour)
	newer := s.receipt("22222222222222222222222222222222222222222222")
	newer.CreatedAt = base
	for _, r := range []*models.Receipt{&older, &newer} {
		_, err := s.store.SaveReceipt(s.ctx, r)
		s.Require().NoError(err)
	}

	foreign := s.receipt("33333333333333333333333333333333333333333333")
	foreign.OwnerID = uuid.New()
	_, err := s.store.SaveReceipt(s.ctx, &foreign)
	s.Require().NoError(err)

	list, err := s.store.ListByOwner(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.AccessKey, list[0].AccessKey)
	s.Equal(older.AccessKey, list[1].AccessKey)
}

func (s *PostgresStoreSuite) TestDeleteReceipt() {
	r := s.receipt(testAccessKey)
	id, err := s.store.SaveWithItems(s.ctx, &r, s.items())
	s.Require().NoError(err)

	s.ErrorIs(s.store.DeleteReceipt(s.ctx, uuid.New(), id), store.ErrNotFound)

	s.Require().NoError(s.store.DeleteReceipt(s.ctx, s.owner, id))
	_, _, err = s.store.GetByID(s.ctx, s.owner, id)
	s.ErrorIs(err, store.ErrNotFound)

	var itemCount int
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`SELECT count(*) FROM receipt_items WHERE receipt_id = $1`, id).Scan(&itemCount))
	s.Zero(itemCount)

	s.ErrorIs(s.store.DeleteReceipt(s.ctx, s.owner, id), store.ErrNotFound)
}
