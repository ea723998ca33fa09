package normalize

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/source"
)

const fsisDateLayout = "2006-01-02"

func normalizeFSIS(raw source.FSISRecall) ([]domain.RecallRecord, error) {
	drop := func(reason string) error {
		return &domain.ParseError{Authority: domain.AuthorityFSIS, Ref: raw.RecallNumber, Reason: reason}
	}

	name := clean(raw.Title, maxProductName)
	if name == "" {
		return nil, drop("missing title")
	}

	date, err := time.Parse(fsisDateLayout, strings.TrimSpace(raw.RecallDate))
	if err != nil {
		return nil, drop("invalid field_recall_date " + quote(raw.RecallDate))
	}

	summary := htmlText(raw.Summary)
	ids := ProductIDs(htmlText(raw.ProductItems), summary)
	if len(ids) == 0 {
		return nil, drop("missing product identifier")
	}

	reason := raw.RecallReason
	if strings.TrimSpace(reason) == "" {
		reason = summary
	}

	template := domain.RecallRecord{
		ProductName:  name,
		BrandName:    clean(raw.Establishment, maxBrandName),
		RecallDate:   domain.Day(date),
		Reason:       clean(reason, maxReason),
		HazardTier:   HazardTier(raw.Classification, raw.RiskLevel),
		FirmName:     clean(raw.Establishment, maxFirmName),
		Distribution: clean(raw.States, maxDistribution),
		Source:       domain.AuthorityFSIS,
	}
	return expand(template, ids), nil
}

// htmlText flattens an HTML fragment into its text content.
func htmlText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) != "#text" {
				walk(s)
				return
			}
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
	}
	walk(doc.Find("body"))
	return strings.Join(parts, " ")
}
