package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndEval(t *testing.T) {
	vars := map[string]float64{
		"score":                1.0,
		"transaction_count_6m": 12,
		"kyc_verified":         0,
		"network_size":         4,
		"avg_amount":           2500,
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"simple comparison", "transaction_count_6m > 10", true},
		{"false comparison", "transaction_count_6m > 20", false},
		{"equality", "kyc_verified == 0", true},
		{"inequality", "network_size != 4", false},
		{"and", "transaction_count_6m > 10 and network_size >= 4", true},
		{"and short", "transaction_count_6m > 10 && kyc_verified == 1", false},
		{"or", "kyc_verified == 1 or network_size > 3", true},
		{"or symbols", "kyc_verified == 1 || network_size > 100", false},
		{"not", "not kyc_verified == 1", true},
		{"not binds after comparison", "not network_size > 3", false},
		{"bang", "!(transaction_count_6m < 5)", true},
		{"parens change grouping", "(kyc_verified == 1 or network_size > 3) and avg_amount > 1000", true},
		{"arithmetic", "avg_amount / transaction_count_6m > 200", true},
		{"arithmetic precedence", "2 + 3 * 4 == 14", true},
		{"unary minus", "-network_size < 0", true},
		{"underscored literal", "avg_amount >= 2_500", true},
		{"pseudo feature", "score <= 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := prog.Eval(vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", "   "},
		{"trailing token", "score > 5 7"},
		{"unbalanced paren", "(score > 5"},
		{"bad character", "score $ 5"},
		{"dangling operator", "score >"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	vars := map[string]float64{"score": 700}

	tests := []struct {
		name string
		expr string
	}{
		{"unknown identifier", "missing_feature > 5"},
		{"numeric top level", "score + 5"},
		{"boolean arithmetic", "(score > 5) + 1 == 2"},
		{"not on number", "not score > 5 and not score"},
		{"division by zero", "score / 0 > 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Compile(tt.expr)
			require.NoError(t, err)

			_, err = prog.Eval(vars)
			assert.Error(t, err)
		})
	}
}

func TestProgramReusableAcrossVars(t *testing.T) {
	prog, err := Compile("score >= 650")
	require.NoError(t, err)

	got, err := prog.Eval(map[string]float64{"score": 700})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = prog.Eval(map[string]float64{"score": 600})
	require.NoError(t, err)
	assert.False(t, got)
}
