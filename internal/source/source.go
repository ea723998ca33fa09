package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"RecallWatch/internal/domain"
)

// FDAEnforcement is one openFDA food enforcement report, kept loosely typed.
type FDAEnforcement struct {
	RecallNumber         string `json:"recall_number"`
	EventID              string `json:"event_id"`
	Status               string `json:"status"`
	Classification       string `json:"classification"`
	ProductDescription   string `json:"product_description"`
	CodeInfo             string `json:"code_info"`
	RecallingFirm        string `json:"recalling_firm"`
	ReasonForRecall      string `json:"reason_for_recall"`
	DistributionPattern  string `json:"distribution_pattern"`
	RecallInitiationDate string `json:"recall_initiation_date"`
	ReportDate           string `json:"report_date"`
}

// FSISRecall is one USDA FSIS recall notice as served by the FSIS recall API.
type FSISRecall struct {
	Title          string `json:"field_title"`
	RecallNumber   string `json:"field_recall_number"`
	RecallDate     string `json:"field_recall_date"`
	RecallReason   string `json:"field_recall_reason"`
	RiskLevel      string `json:"field_risk_level"`
	Classification string `json:"field_recall_classification"`
	Establishment  string `json:"field_establishment"`
	States         string `json:"field_states"`
	Summary        string `json:"field_summary"`
	ProductItems   string `json:"field_product_items"`
	Archived       string `json:"field_archive_recall"`
	Language       string `json:"langcode"`
}

// RawRecord is a tagged variant: exactly one payload matches Authority.
type RawRecord struct {
	Authority domain.Authority
	FDA       *FDAEnforcement
	FSIS      *FSISRecall
}

// Ref is a human-readable reference used in drop logs.
func (r RawRecord) Ref() string {
	switch {
	case r.FDA != nil:
		return r.FDA.RecallNumber
	case r.FSIS != nil:
		return r.FSIS.RecallNumber
	default:
		return ""
	}
}

// Batch is everything one authority returned for a window.
type Batch struct {
	Records []RawRecord
	Dropped []*domain.ParseError
}

// Fetcher retrieves raw recall payloads of one authority. Fetch must not
// mutate the upstream source; fetching the same window twice yields the same batch.
type Fetcher interface {
	Name() string
	Authority() domain.Authority
	Fetch(ctx context.Context, window domain.Window) (Batch, error)
}

// Registry keeps a mapping from fetcher names to their implementations.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: map[string]Fetcher{}}
}

// Register adds or replaces a fetcher implementation.
func (r *Registry) Register(f Fetcher) {
	if r.fetchers == nil {
		r.fetchers = map[string]Fetcher{}
	}
	r.fetchers[strings.ToLower(f.Name())] = f
}

// Resolve returns a fetcher by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Fetcher, error) {
	if f, ok := r.fetchers[strings.ToLower(name)]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("fetcher %s is not registered", name)
}

// Names lists registered fetchers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Outcome is the result of running one fetcher for a window. Err is a
// *domain.NetworkError when the authority contributed nothing.
type Outcome struct {
	Name      string
	Authority domain.Authority
	Window    domain.Window
	Batch     Batch
	Err       error
}
