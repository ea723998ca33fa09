package domain

import (
	"strings"
	"time"
)

// Authority identifies the regulator a recall was published by.
type Authority string

const (
	AuthorityFDA  Authority = "FDA"
	AuthorityFSIS Authority = "FSIS"
)

// HazardTier is the ordinal recall classification. Lower values are more severe.
type HazardTier int

const (
	TierUnknown HazardTier = iota
	TierI
	TierII
	TierIII
)

// String renders the tier the way regulators print it.
func (t HazardTier) String() string {
	switch t {
	case TierI:
		return "Class I"
	case TierII:
		return "Class II"
	case TierIII:
		return "Class III"
	default:
		return "Unclassified"
	}
}

// ParseHazardTier converts a stored label back into a tier.
func ParseHazardTier(label string) HazardTier {
	switch strings.TrimSpace(label) {
	case "Class I":
		return TierI
	case "Class II":
		return TierII
	case "Class III":
		return TierIII
	default:
		return TierUnknown
	}
}

// RecallRecord is the canonical recall representation shared by every authority.
type RecallRecord struct {
	ID           int64
	ProductID    string
	ProductName  string
	BrandName    string
	RecallDate   time.Time
	Reason       string
	HazardTier   HazardTier
	FirmName     string
	Distribution string
	Source       Authority
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpsertResult reports how the store resolved an upsert.
type UpsertResult struct {
	ID       int64
	Inserted bool
}

// SavedItem is a product a user keeps on their list. Owned by the list feature.
type SavedItem struct {
	UserID      string
	ProductID   string
	ProductName string
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
