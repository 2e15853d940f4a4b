package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureSource identifies which extractor family produced a feature.
type FeatureSource string

const (
	SourceIdentity    FeatureSource = "identity"
	SourceTransaction FeatureSource = "transaction"
	SourceNetwork     FeatureSource = "network"
)

// EntityKind is the role an entity plays in the supply chain.
type EntityKind string

const (
	KindSupplier     EntityKind = "supplier"
	KindManufacturer EntityKind = "manufacturer"
	KindDistributor  EntityKind = "distributor"
	KindRetailer     EntityKind = "retailer"
	KindCustomer     EntityKind = "customer"
)

// TransactionKind classifies a ledger transaction.
type TransactionKind string

const (
	TxnInvoice    TransactionKind = "invoice"
	TxnPayment    TransactionKind = "payment"
	TxnCreditNote TransactionKind = "credit_note"
)

// Entity is a business participating in a supply chain.
type Entity struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Kind               EntityKind `json:"kind"`
	TaxID              string     `json:"tax_id,omitempty"`
	RegistrationNumber string     `json:"registration_number,omitempty"`
	ContactPerson      string     `json:"contact_person,omitempty"`
	Email              string     `json:"email,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Address            string     `json:"address,omitempty"`
	KYCVerified        bool       `json:"kyc_verified"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Relationship is a directed commercial link between two entities.
type Relationship struct {
	ID            uuid.UUID `json:"id"`
	FromEntityID  uuid.UUID `json:"from_entity_id"`
	ToEntityID    uuid.UUID `json:"to_entity_id"`
	Kind          string    `json:"kind"`
	EstablishedAt time.Time `json:"established_at"`
}

// Transaction is one ledger entry for an entity.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	EntityID       uuid.UUID       `json:"entity_id"`
	CounterpartyID *uuid.UUID      `json:"counterparty_id,omitempty"`
	Amount         float64         `json:"amount"`
	Kind           TransactionKind `json:"kind"`
	Reference      string          `json:"reference,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// FeatureResult is one signal produced by an extractor run, before storage.
type FeatureResult struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Feature is a stored signal with temporal validity. ValidTo of nil marks
// the current row; superseding a feature closes the old interval and opens
// a new one in the same transaction. Rows are never deleted.
type Feature struct {
	ID         int64         `json:"id"`
	EntityID   uuid.UUID     `json:"entity_id"`
	Name       string        `json:"name"`
	Value      float64       `json:"value"`
	Confidence float64       `json:"confidence"`
	Source     FeatureSource `json:"source"`
	ComputedAt time.Time     `json:"computed_at"`
	ValidFrom  time.Time     `json:"valid_from"`
	ValidTo    *time.Time    `json:"valid_to,omitempty"`
}

// FeatureSnapshot is the complete set of current feature values used for one
// scoring computation, captured for replay.
type FeatureSnapshot map[string]float64

// VersionStatus is the lifecycle state of a scorecard version.
type VersionStatus string

const (
	StatusDraft    VersionStatus = "draft"
	StatusActive   VersionStatus = "active"
	StatusInactive VersionStatus = "inactive"
)

// Provenance records how a scorecard version was authored.
type Provenance string

const (
	ProvenanceExpert    Provenance = "expert"
	ProvenanceMLRefined Provenance = "ml_refined"
)

// FeatureWeight configures how one feature contributes to the score.
// Multiplier scales the normalized value before weighting; Cap bounds the
// normalized contribution fraction (1 = no cap).
type FeatureWeight struct {
	Weight     float64 `json:"weight"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Cap        float64 `json:"cap,omitempty"`
}

// ScalingMethod selects how a raw feature value is normalized to [0,1].
type ScalingMethod string

const (
	ScaleCap    ScalingMethod = "cap"
	ScaleLog    ScalingMethod = "log"
	ScaleDirect ScalingMethod = "direct"
)

// FeatureScaling is the per-feature normalization config.
type FeatureScaling struct {
	Method ScalingMethod `json:"method"`
	Max    float64       `json:"max,omitempty"`
}

// ScorecardVersion is a named, versioned scoring configuration. Weights are
// never mutated in place after creation; changes produce a new version.
type ScorecardVersion struct {
	ID             uuid.UUID                 `json:"id"`
	Version        string                    `json:"version"`
	Status         VersionStatus             `json:"status"`
	Weights        map[string]FeatureWeight  `json:"weights"`
	Scaling        map[string]FeatureScaling `json:"scaling,omitempty"`
	Intercept      float64                   `json:"intercept"`
	BaseScore      int                       `json:"base_score"`
	MaxScore       int                       `json:"max_score"`
	Provenance     Provenance                `json:"provenance"`
	BaseVersionID  *uuid.UUID                `json:"base_version_id,omitempty"`
	ArtifactID     *uuid.UUID                `json:"artifact_id,omitempty"`
	Activatable    bool                      `json:"activatable"`
	GateReason     string                    `json:"gate_reason,omitempty"`
	Discrimination *float64                  `json:"discrimination,omitempty"`
	SampleCount    int                       `json:"sample_count,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	ActivatedAt    *time.Time                `json:"activated_at,omitempty"`
	RetiredAt      *time.Time                `json:"retired_at,omitempty"`
	Notes          string                    `json:"notes,omitempty"`
}

// WeightSum returns the total of all feature weights.
func (v *ScorecardVersion) WeightSum() float64 {
	var sum float64
	for _, w := range v.Weights {
		sum += w.Weight
	}
	return sum
}

// RuleAction is what a matched decision rule does to the running score.
type RuleAction string

const (
	ActionCap      RuleAction = "cap"
	ActionFloor    RuleAction = "floor"
	ActionAdjust   RuleAction = "adjust"
	ActionMultiply RuleAction = "multiply"
	ActionFlag     RuleAction = "flag"
)

// Decision is the actionable outcome of a scoring request.
type Decision string

const (
	DecisionApprove      Decision = "approve"
	DecisionReject       Decision = "reject"
	DecisionFlag         Decision = "flag"
	DecisionManualReview Decision = "manual_review"
)

// DecisionRule adjusts or annotates a computed score when its condition
// matches the feature snapshot. Rules evaluate in ascending priority order,
// ties broken by creation time.
type DecisionRule struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Expression string     `json:"expression"`
	Action     RuleAction `json:"action"`
	Value      float64    `json:"value,omitempty"`
	Flag       string     `json:"flag,omitempty"`
	Priority   int        `json:"priority"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ModelArtifact is the output of an external training routine: per-feature
// risk coefficients plus a discrimination metric. The engine only consumes
// it as input to version refinement.
type ModelArtifact struct {
	ID           uuid.UUID          `json:"id"`
	Coefficients map[string]float64 `json:"coefficients"`
	AUC          float64            `json:"auc"`
	SampleCount  int                `json:"sample_count"`
	TrainedAt    time.Time          `json:"trained_at"`
}

// ScoreRequest is the immutable audit record of one scoring invocation.
type ScoreRequest struct {
	ID                 uuid.UUID       `json:"id"`
	EntityID           uuid.UUID       `json:"entity_id"`
	RequestedAt        time.Time       `json:"requested_at"`
	ScorecardVersionID uuid.UUID       `json:"scorecard_version_id"`
	Snapshot           FeatureSnapshot `json:"snapshot"`
	RawScore           float64         `json:"raw_score"`
	FinalScore         int             `json:"final_score"`
	Band               string          `json:"band"`
	Confidence         float64         `json:"confidence"`
	Decision           Decision        `json:"decision"`
	MatchedRules       []uuid.UUID     `json:"matched_rules"`
	Flags              []string        `json:"flags,omitempty"`
	DegradedSources    []string        `json:"degraded_sources,omitempty"`
	LatencyMS          int64           `json:"latency_ms"`
}
