// Package gate decides whether classified images are eligible for
// publication. An image passes only if it shows permitted subject matter
// and every safety category stays below the blocked likelihood.
package gate

import (
	"fmt"

	"healthbyte/api/internal/config"
	"healthbyte/api/internal/vision"
)

// The categories the safety check inspects. Anything else in the verdict
// is ignored.
var safetyCategories = []string{"adult", "violence", "racy"}

type Verdict struct {
	Accepted bool
	Reason   string
}

type Gate struct {
	allowed map[string]struct{}
	blocked vision.Likelihood
}

func New(cfg config.ModerationConfig) *Gate {
	allowed := make(map[string]struct{}, len(cfg.AllowedLabels))
	for _, label := range cfg.AllowedLabels {
		allowed[label] = struct{}{}
	}
	blocked := vision.ParseLikelihood(cfg.BlockedLevel)
	if blocked == vision.LikelihoodUnknown {
		blocked = vision.LikelihoodLikely
	}
	return &Gate{allowed: allowed, blocked: blocked}
}

// Evaluate applies both checks to one item's annotation. Idempotent for
// identical annotations.
func (g *Gate) Evaluate(annotation vision.Annotation) Verdict {
	if !g.subjectMatterOK(annotation) {
		return Verdict{Reason: "no permitted subject matter detected"}
	}
	for _, category := range safetyCategories {
		level := annotation.SafeSearch[category]
		if level.AtLeast(g.blocked) {
			return Verdict{Reason: fmt.Sprintf("safety category %s at %s", category, level)}
		}
	}
	return Verdict{Accepted: true}
}

// subjectMatterOK requires at least one label from the permitted set.
// Exact match against the classifier vocabulary, no score threshold.
func (g *Gate) subjectMatterOK(annotation vision.Annotation) bool {
	for _, label := range annotation.Labels {
		if _, ok := g.allowed[label.Description]; ok {
			return true
		}
	}
	return false
}
