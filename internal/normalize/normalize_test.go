package normalize

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/source"
)

func fdaRecord() source.RawRecord {
	return source.RawRecord{
		Authority: domain.AuthorityFDA,
		FDA: &source.FDAEnforcement{
			RecallNumber:         "F-0412-2025",
			Status:               "Ongoing",
			Classification:       "Class I",
			ProductDescription:   "Chunky Peanut Butter, 16 oz jar",
			CodeInfo:             "UPC 041190460002; Lot 24A17 Best by 12/2026",
			RecallingFirm:        "Acme Foods Inc.",
			ReasonForRecall:      "Potential   Salmonella contamination",
			DistributionPattern:  "Nationwide",
			RecallInitiationDate: "20250115",
		},
	}
}

func TestNormalizeFDA(t *testing.T) {
	t.Parallel()

	records, err := Normalize(fdaRecord())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "041190460002", rec.ProductID)
	assert.Equal(t, "Chunky Peanut Butter, 16 oz jar", rec.ProductName)
	assert.Equal(t, "Acme Foods Inc.", rec.BrandName)
	assert.Equal(t, "Acme Foods Inc.", rec.FirmName)
	assert.Equal(t, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), rec.RecallDate)
	assert.Equal(t, "Potential Salmonella contamination", rec.Reason)
	assert.Equal(t, domain.TierI, rec.HazardTier)
	assert.Equal(t, "Nationwide", rec.Distribution)
	assert.Equal(t, domain.AuthorityFDA, rec.Source)
	assert.Zero(t, rec.ID)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	t.Parallel()

	first, err := Normalize(fdaRecord())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Normalize(fdaRecord())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNormalizeFDAMultipleIdentifiers(t *testing.T) {
	t.Parallel()

	raw := fdaRecord()
	raw.FDA.CodeInfo = "UPC 041190460002, 0041190460019 and again 041190460002"

	records, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "041190460002", records[0].ProductID)
	assert.Equal(t, "041190460019", records[1].ProductID)
	assert.Equal(t, records[0].RecallDate, records[1].RecallDate)
}

func TestNormalizeFDADrops(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*source.FDAEnforcement){
		"missing product identifier": func(r *source.FDAEnforcement) { r.CodeInfo = "Lot 24A17" },
		"invalid recall_initiation_date": func(r *source.FDAEnforcement) {
			r.RecallInitiationDate = "2025-01-15"
		},
		"missing product description": func(r *source.FDAEnforcement) { r.ProductDescription = "  " },
	}

	for reason, mutate := range cases {
		t.Run(reason, func(t *testing.T) {
			raw := fdaRecord()
			mutate(raw.FDA)

			records, err := Normalize(raw)
			assert.Nil(t, records)

			var perr *domain.ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
			assert.Equal(t, "F-0412-2025", perr.Ref)
			assert.Contains(t, perr.Reason, reason)
		})
	}
}

func TestNormalizeFDASkipsTerminated(t *testing.T) {
	t.Parallel()

	raw := fdaRecord()
	raw.FDA.Status = "Terminated"

	records, err := Normalize(raw)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestNormalizeFDATruncates(t *testing.T) {
	t.Parallel()

	raw := fdaRecord()
	raw.FDA.ReasonForRecall = strings.Repeat("x", 1500)

	records, err := Normalize(raw)
	require.NoError(t, err)
	assert.Len(t, records[0].Reason, maxReason)
}

func TestNormalizeFSIS(t *testing.T) {
	t.Parallel()

	raw := source.RawRecord{
		Authority: domain.AuthorityFSIS,
		FSIS: &source.FSISRecall{
			Title:          "Example Farms Recalls Chicken Sausage Products",
			RecallNumber:   "003-2025",
			RecallDate:     "2025-02-03",
			RecallReason:   "Unreported Allergens",
			RiskLevel:      "High - Class I",
			Classification: "Class I",
			Establishment:  "Example Farms LLC",
			States:         "Iowa, Nebraska",
			Summary:        "<p>The products contain milk.</p><p>UPC 012345678905 on label.</p>",
			ProductItems:   "<ul><li>12-oz. packages with UPC 012345678905</li><li>24-oz. packages with UPC 012345678912</li></ul>",
			Language:       "English",
		},
	}

	records, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "012345678905", records[0].ProductID)
	assert.Equal(t, "012345678912", records[1].ProductID)
	assert.Equal(t, domain.TierI, records[0].HazardTier)
	assert.Equal(t, "Unreported Allergens", records[0].Reason)
	assert.Equal(t, "Iowa, Nebraska", records[0].Distribution)
	assert.Equal(t, domain.AuthorityFSIS, records[0].Source)
}

func TestNormalizeFSISReasonFallsBackToSummary(t *testing.T) {
	t.Parallel()

	raw := source.RawRecord{
		Authority: domain.AuthorityFSIS,
		FSIS: &source.FSISRecall{
			Title:        "Ground Beef Recall",
			RecallNumber: "004-2025",
			RecallDate:   "2025-02-04",
			RiskLevel:    "Public Health Alert",
			Summary:      "<p>Possible <b>E. coli</b> O157:H7 contamination.</p>",
			ProductItems: "UPC 012345678929",
		},
	}

	records, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Possible E. coli O157:H7 contamination.", records[0].Reason)
	assert.Equal(t, domain.TierII, records[0].HazardTier)
}

func TestNormalizeUnsupportedAuthority(t *testing.T) {
	t.Parallel()

	_, err := Normalize(source.RawRecord{Authority: "CFIA"})
	var perr *domain.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestHazardTier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		texts []string
		want  domain.HazardTier
	}{
		{[]string{"Class I"}, domain.TierI},
		{[]string{"Class II"}, domain.TierII},
		{[]string{"Class III"}, domain.TierIII},
		{[]string{"class 3"}, domain.TierIII},
		{[]string{"Class I", "High - Class I"}, domain.TierI},
		{[]string{"", "Marginal - Class III"}, domain.TierIII},
		{[]string{"Low"}, domain.TierII},
		{[]string{"Public Health Alert"}, domain.TierII},
		{[]string{"Class I", "Low - Class II"}, domain.TierII},
		{[]string{"Classification pending"}, domain.TierII},
		{nil, domain.TierII},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HazardTier(tc.texts...), "texts %q", tc.texts)
	}
}

func TestProductIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"041190460002"}, ProductIDs("UPC: 0041190460002"))
	assert.Equal(t, []string{"1234567890123"}, ProductIDs("EAN 1234567890123"))
	assert.Empty(t, ProductIDs("Lot 12345678901 and 123456789012345"))
}

func TestCanonicalProductID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "041190460002", CanonicalProductID("0041190460002"))
	assert.Equal(t, "041190460002", CanonicalProductID(" 041190460002 "))
	assert.Equal(t, "1234567890123", CanonicalProductID("1234567890123"))
	assert.Equal(t, "0abcdefghijkl", CanonicalProductID("0abcdefghijkl"))
}
