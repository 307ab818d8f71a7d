package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/store"
)

// userKey builds the storage key for a user's conversation state. Role is
// part of the key because an owner and an attendant can share a phone number
// in test fixtures and must never share flow state.
func userKey(user *models.User) string {
	return fmt.Sprintf("%s:%d", user.Role, user.UserID)
}

// StateManager persists conversation state between messages, validating
// context completeness and transition legality on every write.
type StateManager struct {
	store store.Store
}

// NewStateManager creates a state manager backed by the given store.
func NewStateManager(s store.Store) *StateManager {
	return &StateManager{store: s}
}

// Load restores the user's saved state and context onto the User and
// returns when the row was last written. A user with no saved row is idle
// and gets a zero time.
func (m *StateManager) Load(ctx context.Context, user *models.User) (time.Time, error) {
	key := userKey(user)
	saved, err := m.store.GetConversationState(ctx, key)
	if err != nil {
		slog.Error("StateManager Load failed", "error", err, "userKey", key)
		return time.Time{}, fmt.Errorf("failed to load conversation state: %w", err)
	}
	if saved == nil {
		user.State = models.StateIdle
		user.Context = models.ConvContext{}
		return time.Time{}, nil
	}
	user.State = saved.State
	user.Context = saved.Context
	slog.Debug("StateManager Load succeeded", "userKey", key, "state", user.State)
	return saved.UpdatedAt, nil
}

// Set moves the user to a new state with the given context. The context must
// carry every field the new state's handler reads, and the transition must be
// legal from the user's current state.
func (m *StateManager) Set(ctx context.Context, user *models.User, state models.ConvState, convCtx models.ConvContext) error {
	if err := convCtx.ValidateFor(state); err != nil {
		return err
	}
	if !models.CanTransition(user.State, state) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, user.State, state)
	}
	key := userKey(user)
	err := m.store.SaveConversationState(ctx, models.ConversationState{
		UserKey:   key,
		State:     state,
		Context:   convCtx,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("StateManager Set failed", "error", err, "userKey", key, "state", state)
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	user.State = state
	user.Context = convCtx
	slog.Debug("StateManager Set succeeded", "userKey", key, "state", state)
	return nil
}

// Clear returns the user to idle and deletes the saved row.
func (m *StateManager) Clear(ctx context.Context, user *models.User) error {
	key := userKey(user)
	if err := m.store.DeleteConversationState(ctx, key); err != nil {
		slog.Error("StateManager Clear failed", "error", err, "userKey", key)
		return fmt.Errorf("failed to clear conversation state: %w", err)
	}
	user.State = models.StateIdle
	user.Context = models.ConvContext{}
	slog.Debug("StateManager Clear succeeded", "userKey", key)
	return nil
}
