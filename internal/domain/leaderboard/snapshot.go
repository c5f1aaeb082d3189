package leaderboard

import (
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

// Snapshot records the ranks a requester last saw for a friends leaderboard.
type Snapshot struct {
	OwnerID string                 `json:"owner_id"`
	Period  Period                 `json:"period"`
	Ranks   map[string]shared.Rank `json:"ranks"`
	TakenAt time.Time              `json:"taken_at"`
}

// NewSnapshot captures the current ranks of a ranking.
func NewSnapshot(ownerID string, period Period, r *Ranking, at time.Time) *Snapshot {
	s := &Snapshot{
		OwnerID: ownerID,
		Period:  period,
		Ranks:   make(map[string]shared.Rank, r.Count()),
		TakenAt: at,
	}
	for _, row := range r.Rows() {
		s.Ranks[row.UserID] = row.Rank
	}
	return s
}

// ApplyPositionChange sets PositionChange = previous rank - current rank on
// every row that appears in prev. Positive means the user moved up.
// Rows new to the ranking keep a nil change.
func (r *Ranking) ApplyPositionChange(prev *Snapshot) {
	if prev == nil {
		return
	}
	for _, row := range r.rows {
		old, ok := prev.Ranks[row.UserID]
		if !ok {
			continue
		}
		delta := row.Rank.Compare(old)
		row.PositionChange = &delta
	}
}
