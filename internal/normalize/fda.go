package normalize

import (
	"strings"
	"time"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/source"
)

const fdaDateLayout = "20060102"

var fdaInactiveStatuses = map[string]struct{}{
	"terminated": {},
	"completed":  {},
	"closed":     {},
}

func normalizeFDA(raw source.FDAEnforcement) ([]domain.RecallRecord, error) {
	drop := func(reason string) error {
		return &domain.ParseError{Authority: domain.AuthorityFDA, Ref: raw.RecallNumber, Reason: reason}
	}

	if _, inactive := fdaInactiveStatuses[strings.ToLower(strings.TrimSpace(raw.Status))]; inactive {
		return nil, nil
	}

	name := clean(raw.ProductDescription, maxProductName)
	if name == "" {
		return nil, drop("missing product description")
	}

	date, err := time.Parse(fdaDateLayout, strings.TrimSpace(raw.RecallInitiationDate))
	if err != nil {
		return nil, drop("invalid recall_initiation_date " + quote(raw.RecallInitiationDate))
	}

	ids := ProductIDs(raw.CodeInfo, raw.ProductDescription)
	if len(ids) == 0 {
		return nil, drop("missing product identifier")
	}

	template := domain.RecallRecord{
		ProductName:  name,
		BrandName:    clean(raw.RecallingFirm, maxBrandName),
		RecallDate:   domain.Day(date),
		Reason:       clean(raw.ReasonForRecall, maxReason),
		HazardTier:   HazardTier(raw.Classification),
		FirmName:     clean(raw.RecallingFirm, maxFirmName),
		Distribution: clean(raw.DistributionPattern, maxDistribution),
		Source:       domain.AuthorityFDA,
	}
	return expand(template, ids), nil
}

func quote(v string) string {
	return `"` + v + `"`
}
