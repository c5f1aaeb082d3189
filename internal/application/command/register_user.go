package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// RegisterUserCommand provisions a user and their statistics row. Signup
// itself happens in the authentication service; this is the hook it calls.
type RegisterUserCommand struct {
	// UserID is the id issued by the authentication service. Empty means
	// generate one.
	UserID      string
	Username    string
	DisplayName string
}

// RegisterUserHandler handles RegisterUserCommand.
type RegisterUserHandler struct {
	repo  user.Repository
	clock timeutil.Clock
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(repo user.Repository, clock timeutil.Clock) *RegisterUserHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &RegisterUserHandler{repo: repo, clock: clock}
}

// Handle creates the user.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*user.User, error) {
	id := cmd.UserID
	if id == "" {
		id = uuid.NewString()
	}

	u, err := user.New(id, cmd.Username, cmd.DisplayName, h.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := h.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}
	return u, nil
}
