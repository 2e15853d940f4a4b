package scorecard

import "github.com/ledgerline-systems/supplyscore/internal/models"

// ExpertVersion returns the hand-tuned seed scorecard used until an ML
// refinement replaces it. Weight points reflect analyst judgement about
// which signals separate reliable counterparties from risky ones; recent
// activity and sustained transaction volume carry the most.
func ExpertVersion() *models.ScorecardVersion {
	return &models.ScorecardVersion{
		Version:    "1.0",
		Status:     models.StatusDraft,
		Provenance: models.ProvenanceExpert,
		BaseScore:  300,
		MaxScore:   900,
		Weights: map[string]models.FeatureWeight{
			"kyc_verified":                 {Weight: 15},
			"has_tax_id":                   {Weight: 10},
			"contact_completeness":         {Weight: 5},
			"company_age_years":            {Weight: 10},
			"entity_kind_score":            {Weight: 10, Multiplier: 10},
			"transaction_count_6m":         {Weight: 20},
			"avg_transaction_amount":       {Weight: 15},
			"recent_activity_flag":         {Weight: 25},
			"transaction_regularity_score": {Weight: 15},
			"network_size":                 {Weight: 10},
			"direct_counterparty_count":    {Weight: 10},
			"network_balance_ratio":        {Weight: 10},
			"network_depth_downstream":     {Weight: 10},
		},
		Scaling: map[string]models.FeatureScaling{
			"company_age_years":         {Method: models.ScaleCap, Max: 5},
			"transaction_count_6m":      {Method: models.ScaleCap, Max: 50},
			"avg_transaction_amount":    {Method: models.ScaleLog, Max: 100000},
			"network_size":              {Method: models.ScaleCap, Max: 20},
			"direct_counterparty_count": {Method: models.ScaleCap, Max: 10},
			"network_depth_downstream":  {Method: models.ScaleCap, Max: 5},
		},
		Activatable: true,
		Notes:       "expert baseline scorecard",
	}
}
