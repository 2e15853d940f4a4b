// Package seeder generates synthetic supply-chain data for local
// development and demos.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/models"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
)

var kinds = []models.EntityKind{
	models.KindSupplier,
	models.KindManufacturer,
	models.KindDistributor,
	models.KindRetailer,
	models.KindCustomer,
}

var txnKinds = []models.TransactionKind{
	models.TxnInvoice,
	models.TxnPayment,
	models.TxnCreditNote,
}

type Seeder struct {
	repo repository.Repository
	fake *gofakeit.Faker
	log  *slog.Logger
}

// New returns a seeder with a fixed faker seed so repeated runs produce
// the same population.
func New(repo repository.Repository, seed int64, log *slog.Logger) *Seeder {
	return &Seeder{repo: repo, fake: gofakeit.New(seed), log: log}
}

// Seed creates count entities with randomized profiles, links them into a
// loose supply chain, and backfills transaction history for most of them.
// A slice of the population is deliberately left thin-file to exercise the
// degraded extraction paths.
func (s *Seeder) Seed(ctx context.Context, count int) ([]uuid.UUID, error) {
	now := time.Now().UTC()
	ids := make([]uuid.UUID, 0, count)

	for i := 0; i < count; i++ {
		entity := &models.Entity{
			Name:               s.fake.Company(),
			Kind:               kinds[s.fake.Number(0, len(kinds)-1)],
			TaxID:              s.maybe(0.8, s.fake.Numerify("TAX-########")),
			RegistrationNumber: s.fake.Numerify("REG-######"),
			ContactPerson:      s.maybe(0.7, s.fake.Name()),
			Email:              s.maybe(0.9, s.fake.Email()),
			Phone:              s.maybe(0.6, s.fake.Phone()),
			Address:            s.maybe(0.7, s.fake.Address().Address),
			KYCVerified:        s.fake.Float64() < 0.6,
			CreatedAt:          now.AddDate(0, -s.fake.Number(1, 96), 0),
		}
		if err := s.repo.CreateEntity(ctx, entity); err != nil {
			return nil, fmt.Errorf("failed to seed entity: %w", err)
		}
		ids = append(ids, entity.ID)
	}

	if err := s.linkEntities(ctx, ids, now); err != nil {
		return nil, err
	}
	if err := s.backfillTransactions(ctx, ids, now); err != nil {
		return nil, err
	}

	s.log.Info("seeded synthetic population", "entities", len(ids))
	return ids, nil
}

func (s *Seeder) linkEntities(ctx context.Context, ids []uuid.UUID, now time.Time) error {
	for _, from := range ids {
		links := s.fake.Number(0, 4)
		for j := 0; j < links; j++ {
			to := ids[s.fake.Number(0, len(ids)-1)]
			if to == from {
				continue
			}
			rel := &models.Relationship{
				FromEntityID:  from,
				ToEntityID:    to,
				Kind:          "sells_to",
				EstablishedAt: now.AddDate(0, -s.fake.Number(1, 48), 0),
			}
			if err := s.repo.CreateRelationship(ctx, rel); err != nil {
				return fmt.Errorf("failed to seed relationship: %w", err)
			}
		}
	}
	return nil
}

func (s *Seeder) backfillTransactions(ctx context.Context, ids []uuid.UUID, now time.Time) error {
	for _, id := range ids {
		// roughly one in five entities stays thin-file
		if s.fake.Float64() < 0.2 {
			continue
		}
		n := s.fake.Number(3, 40)
		for j := 0; j < n; j++ {
			counterparty := ids[s.fake.Number(0, len(ids)-1)]
			txn := &models.Transaction{
				EntityID:       id,
				CounterpartyID: &counterparty,
				Amount:         s.fake.Float64Range(200, 80000),
				Kind:           txnKinds[s.fake.Number(0, len(txnKinds)-1)],
				Reference:      s.fake.Numerify("INV-######"),
				OccurredAt:     now.AddDate(0, 0, -s.fake.Number(1, 175)),
			}
			if err := s.repo.CreateTransaction(ctx, txn); err != nil {
				return fmt.Errorf("failed to seed transaction: %w", err)
			}
		}
	}
	return nil
}

func (s *Seeder) maybe(p float64, v string) string {
	if s.fake.Float64() < p {
		return v
	}
	return ""
}
