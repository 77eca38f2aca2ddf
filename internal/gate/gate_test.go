package gate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"healthbyte/api/internal/config"
	"healthbyte/api/internal/gate"
	"healthbyte/api/internal/models"
	"healthbyte/api/internal/vision"
)

func defaultGate() *gate.Gate {
	return gate.New(config.ModerationConfig{
		AllowedLabels: []string{"Food", "Dish", "Cuisine", "Drink", "Meal"},
		BlockedLevel:  "LIKELY",
	})
}

func safe() map[string]vision.Likelihood {
	return map[string]vision.Likelihood{
		"adult":    vision.LikelihoodVeryUnlikely,
		"violence": vision.LikelihoodVeryUnlikely,
		"racy":     vision.LikelihoodVeryUnlikely,
	}
}

func TestEvaluate(t *testing.T) {
	g := defaultGate()

	tests := []struct {
		name       string
		labels     []models.Label
		safety     map[string]vision.Likelihood
		wantAccept bool
	}{
		{
			name:       "food label and clean safety",
			labels:     []models.Label{{Description: "Food", Score: 0.9}},
			safety:     safe(),
			wantAccept: true,
		},
		{
			name:       "low score still counts, presence is enough",
			labels:     []models.Label{{Description: "Drink", Score: 0.01}},
			safety:     safe(),
			wantAccept: true,
		},
		{
			name:       "no permitted label",
			labels:     []models.Label{{Description: "Car", Score: 0.99}, {Description: "Vehicle", Score: 0.95}},
			safety:     safe(),
			wantAccept: false,
		},
		{
			name:       "empty label set",
			labels:     nil,
			safety:     safe(),
			wantAccept: false,
		},
		{
			name:   "case sensitive match",
			labels: []models.Label{{Description: "food", Score: 0.9}},
			safety: safe(),
		},
		{
			name:   "adult likely fails",
			labels: []models.Label{{Description: "Food", Score: 0.9}},
			safety: map[string]vision.Likelihood{
				"adult":    vision.LikelihoodLikely,
				"violence": vision.LikelihoodVeryUnlikely,
				"racy":     vision.LikelihoodVeryUnlikely,
			},
		},
		{
			name:   "racy very likely fails",
			labels: []models.Label{{Description: "Meal", Score: 0.9}},
			safety: map[string]vision.Likelihood{
				"adult":    vision.LikelihoodVeryUnlikely,
				"violence": vision.LikelihoodVeryUnlikely,
				"racy":     vision.LikelihoodVeryLikely,
			},
		},
		{
			name:   "possible is still below the bar",
			labels: []models.Label{{Description: "Cuisine", Score: 0.9}},
			safety: map[string]vision.Likelihood{
				"adult":    vision.LikelihoodPossible,
				"violence": vision.LikelihoodPossible,
				"racy":     vision.LikelihoodPossible,
			},
			wantAccept: true,
		},
		{
			name:       "missing safety categories default to unknown and pass",
			labels:     []models.Label{{Description: "Dish", Score: 0.9}},
			safety:     map[string]vision.Likelihood{},
			wantAccept: true,
		},
		{
			name:   "unknown extra category is ignored",
			labels: []models.Label{{Description: "Food", Score: 0.9}},
			safety: map[string]vision.Likelihood{
				"adult":    vision.LikelihoodVeryUnlikely,
				"violence": vision.LikelihoodVeryUnlikely,
				"racy":     vision.LikelihoodVeryUnlikely,
				"spoof":    vision.LikelihoodVeryLikely,
			},
			wantAccept: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict := g.Evaluate(vision.Annotation{Labels: tc.labels, SafeSearch: tc.safety})
			require.Equal(t, tc.wantAccept, verdict.Accepted)
			if !tc.wantAccept {
				require.NotEmpty(t, verdict.Reason)
			}
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	g := defaultGate()
	annotation := vision.Annotation{
		Labels:     []models.Label{{Description: "Food", Score: 0.9}},
		SafeSearch: safe(),
	}

	first := g.Evaluate(annotation)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, g.Evaluate(annotation))
	}
}
