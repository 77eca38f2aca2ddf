package vision

// Likelihood is the ordinal safety verdict returned by the annotation
// service. Unrecognized values collapse to Unknown.
type Likelihood string

const (
	LikelihoodUnknown      Likelihood = "UNKNOWN"
	LikelihoodVeryUnlikely Likelihood = "VERY_UNLIKELY"
	LikelihoodUnlikely     Likelihood = "UNLIKELY"
	LikelihoodPossible     Likelihood = "POSSIBLE"
	LikelihoodLikely       Likelihood = "LIKELY"
	LikelihoodVeryLikely   Likelihood = "VERY_LIKELY"
)

var likelihoodRank = map[Likelihood]int{
	LikelihoodUnknown:      0,
	LikelihoodVeryUnlikely: 1,
	LikelihoodUnlikely:     2,
	LikelihoodPossible:     3,
	LikelihoodLikely:       4,
	LikelihoodVeryLikely:   5,
}

// AtLeast reports whether l is as likely or more likely than other.
func (l Likelihood) AtLeast(other Likelihood) bool {
	return likelihoodRank[l] >= likelihoodRank[other]
}

// ParseLikelihood maps a wire value onto the ordinal scale.
func ParseLikelihood(s string) Likelihood {
	l := Likelihood(s)
	if _, ok := likelihoodRank[l]; !ok {
		return LikelihoodUnknown
	}
	return l
}
