package command

import (
	"context"
	"fmt"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
)

// FriendshipHandler sends and accepts friend requests. The friends
// leaderboard reads the accepted ones.
type FriendshipHandler struct {
	users   user.Repository
	friends social.Repository
}

// NewFriendshipHandler creates a new FriendshipHandler.
func NewFriendshipHandler(users user.Repository, friends social.Repository) *FriendshipHandler {
	return &FriendshipHandler{users: users, friends: friends}
}

// Request sends a friend request from actorID to targetID.
func (h *FriendshipHandler) Request(ctx context.Context, actorID, targetID string) (*social.Friendship, error) {
	if err := shared.RequireActor("social", "Request", actorID); err != nil {
		return nil, err
	}
	if actorID == targetID {
		return nil, shared.ErrSelfFriendship
	}
	if _, err := h.users.FindByID(ctx, targetID); err != nil {
		return nil, fmt.Errorf("request_friend: %w", err)
	}
	return h.friends.Request(ctx, actorID, targetID)
}

// Accept accepts the pending request that requesterID sent to actorID.
func (h *FriendshipHandler) Accept(ctx context.Context, actorID, requesterID string) error {
	if err := shared.RequireActor("social", "Accept", actorID); err != nil {
		return err
	}
	return h.friends.Accept(ctx, requesterID, actorID)
}
