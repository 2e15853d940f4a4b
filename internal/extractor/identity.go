package extractor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

// entityKindScores ranks supply-chain roles by typical creditworthiness,
// anchor manufacturers highest.
var entityKindScores = map[models.EntityKind]float64{
	models.KindManufacturer: 10,
	models.KindDistributor:  8,
	models.KindSupplier:     7,
	models.KindRetailer:     6,
	models.KindCustomer:     5,
}

// IdentityExtractor derives features from an entity's registration and
// contact records.
type IdentityExtractor struct {
	reader SourceReader
}

func NewIdentityExtractor(reader SourceReader) *IdentityExtractor {
	return &IdentityExtractor{reader: reader}
}

func (x *IdentityExtractor) Source() models.FeatureSource {
	return models.SourceIdentity
}

func (x *IdentityExtractor) Extract(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.FeatureResult, error) {
	entity, err := x.reader.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	kycVerified := 0.0
	if entity.KYCVerified {
		kycVerified = 1.0
	}
	hasTaxID := 0.0
	if entity.TaxID != "" {
		hasTaxID = 1.0
	}

	filled := 0
	for _, field := range []string{entity.ContactPerson, entity.Email, entity.Phone, entity.Address} {
		if field != "" {
			filled++
		}
	}
	contactCompleteness := float64(filled) * 25.0

	ageYears := asOf.Sub(entity.CreatedAt).Hours() / (24 * 365.25)
	if ageYears < 0 {
		ageYears = 0
	}

	return []models.FeatureResult{
		{Name: "kyc_verified", Value: kycVerified, Confidence: 1.0},
		{Name: "has_tax_id", Value: hasTaxID, Confidence: 1.0},
		{Name: "contact_completeness", Value: contactCompleteness, Confidence: 1.0},
		{Name: "company_age_years", Value: ageYears, Confidence: 0.9},
		{Name: "entity_kind_score", Value: entityKindScores[entity.Kind], Confidence: 1.0},
	}, nil
}
