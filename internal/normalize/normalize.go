// Package normalize maps authority-specific raw recall payloads onto the
// canonical domain.RecallRecord. Everything here is pure: no I/O, no clock.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/source"
)

// Column widths of the recalls table.
const (
	maxProductName  = 500
	maxBrandName    = 200
	maxReason       = 1000
	maxFirmName     = 200
	maxDistribution = 500
)

var (
	productIDExpr = regexp.MustCompile(`\b(\d{12,13})\b`)
	spaceExpr     = regexp.MustCompile(`\s+`)
)

// Normalize converts one raw record into canonical recall records, one per
// distinct product identifier in order of appearance. A nil slice with a nil
// error means the record is intentionally skipped (e.g. a terminated recall).
func Normalize(raw source.RawRecord) ([]domain.RecallRecord, error) {
	switch raw.Authority {
	case domain.AuthorityFDA:
		if raw.FDA == nil {
			return nil, &domain.ParseError{Authority: raw.Authority, Reason: "empty FDA payload"}
		}
		return normalizeFDA(*raw.FDA)
	case domain.AuthorityFSIS:
		if raw.FSIS == nil {
			return nil, &domain.ParseError{Authority: raw.Authority, Reason: "empty FSIS payload"}
		}
		return normalizeFSIS(*raw.FSIS)
	default:
		return nil, &domain.ParseError{Authority: raw.Authority, Ref: raw.Ref(), Reason: "unsupported authority"}
	}
}

// CanonicalProductID returns the form product identifiers are stored and
// joined in. A 13-digit code with a leading zero is the EAN form of a UPC-A
// and is reduced to 12 digits; anything else is only trimmed.
func CanonicalProductID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) == 13 && id[0] == '0' && isDigits(id) {
		return id[1:]
	}
	return id
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ProductIDs extracts 12-13 digit UPC/EAN codes from free text in canonical form.
func ProductIDs(texts ...string) []string {
	var ids []string
	seen := map[string]struct{}{}
	for _, text := range texts {
		for _, m := range productIDExpr.FindAllStringSubmatch(text, -1) {
			id := CanonicalProductID(m[1])
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func expand(template domain.RecallRecord, ids []string) []domain.RecallRecord {
	records := make([]domain.RecallRecord, 0, len(ids))
	for _, id := range ids {
		rec := template
		rec.ProductID = id
		records = append(records, rec)
	}
	return records
}

func clean(value string, limit int) string {
	value = strings.TrimSpace(spaceExpr.ReplaceAllString(value, " "))
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:limit]))
}
