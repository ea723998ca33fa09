package normalize

import (
	"regexp"
	"strings"

	"RecallWatch/internal/domain"
)

// FallbackTier is applied when the authority's wording does not pin down a
// single tier. Provisional until product owners confirm it.
const FallbackTier = domain.TierII

var (
	classExpr = regexp.MustCompile(`(?i)\bclass\s*[-:]?\s*(iii|ii|i|3|2|1)\b`)
	riskExpr  = regexp.MustCompile(`(?i)^\s*(high|low|marginal)\b`)
)

// HazardTier maps free-text classifications to the three-tier scale. Every
// text is inspected; the result is a tier only when all mentions agree.
func HazardTier(texts ...string) domain.HazardTier {
	found := map[domain.HazardTier]struct{}{}
	for _, text := range texts {
		for _, m := range classExpr.FindAllStringSubmatch(text, -1) {
			found[tierFromToken(m[1])] = struct{}{}
		}
		if m := riskExpr.FindStringSubmatch(text); m != nil {
			found[tierFromRisk(m[1])] = struct{}{}
		}
	}

	if len(found) != 1 {
		return FallbackTier
	}
	for tier := range found {
		return tier
	}
	return FallbackTier
}

func tierFromToken(token string) domain.HazardTier {
	switch strings.ToLower(token) {
	case "i", "1":
		return domain.TierI
	case "ii", "2":
		return domain.TierII
	default:
		return domain.TierIII
	}
}

func tierFromRisk(word string) domain.HazardTier {
	switch strings.ToLower(word) {
	case "high":
		return domain.TierI
	case "low":
		return domain.TierII
	default:
		return domain.TierIII
	}
}
