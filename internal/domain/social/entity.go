// Package social models friendships between users.
package social

import (
	"context"
	"time"
)

// FriendshipStatus is the relation between two users as seen by one of them.
type FriendshipStatus string

const (
	StatusNone     FriendshipStatus = "none"
	StatusPending  FriendshipStatus = "pending"
	StatusAccepted FriendshipStatus = "accepted"
)

// Friendship is a directed request that becomes mutual once accepted.
type Friendship struct {
	RequesterID string           `json:"requester_id"`
	AddresseeID string           `json:"addressee_id"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
}

// Involves reports whether the user is either side of the friendship.
func (f *Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// Other returns the id on the opposite side from userID.
func (f *Friendship) Other(userID string) string {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// StatusMap indexes a user's friendships by the other user's id.
func StatusMap(userID string, fs []*Friendship) map[string]FriendshipStatus {
	m := make(map[string]FriendshipStatus, len(fs))
	for _, f := range fs {
		if !f.Involves(userID) {
			continue
		}
		m[f.Other(userID)] = f.Status
	}
	return m
}

// Repository stores friendships.
type Repository interface {
	// Request creates a pending friendship. It fails with
	// shared.ErrFriendshipExists if any relation already exists either way.
	Request(ctx context.Context, requesterID, addresseeID string) (*Friendship, error)

	// Accept marks the pending request from requesterID to addresseeID accepted.
	Accept(ctx context.Context, requesterID, addresseeID string) error

	// ListForUser returns every friendship involving the user.
	ListForUser(ctx context.Context, userID string) ([]*Friendship, error)
}

// AcceptedFriendIDs returns the ids of accepted friends.
func AcceptedFriendIDs(userID string, fs []*Friendship) []string {
	var out []string
	for _, f := range fs {
		if f.Status == StatusAccepted && f.Involves(userID) {
			out = append(out, f.Other(userID))
		}
	}
	return out
}
