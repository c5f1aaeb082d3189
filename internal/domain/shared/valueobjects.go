package shared

import "strings"

// ═══════════════════════════════════════════════════════════════════════════
// User ID
// ═══════════════════════════════════════════════════════════════════════════

// RequireActor checks that an acting user is present. It is the first check
// of every write path so that no partial state is ever produced.
func RequireActor(domain, op, actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return NotAuthenticated(domain, op)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a 1-based position in a ranking.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsTop returns true if the rank is in the top N.
func (r Rank) IsTop(n int) bool {
	return r.IsValid() && int(r) <= n
}

// Compare returns the movement from previous to r.
// Positive value means improvement (moved up), negative means dropped.
func (r Rank) Compare(previous Rank) int {
	return int(previous) - int(r)
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Offset returns the offset for slicing or queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the page size, clamped.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	return Pagination{Page: page, PageSize: Pagination{PageSize: pageSize}.Limit()}
}
