package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/insightloop/client-go/internal/room"
)

// Login authenticates by username and returns the server-assigned user.
func (c *Client) Login(ctx context.Context, username string) (*room.User, error) {
	payload := struct {
		Username string `json:"username"`
	}{Username: username}

	body, err := c.postJSON(ctx, "/auth", payload)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var user room.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal login response: %w", err)
	}
	if user.UserID == "" {
		return nil, fmt.Errorf("login: server returned no user id")
	}
	return &user, nil
}

// GetUser resolves a user id to its profile, used for lazy author lookups.
func (c *Client) GetUser(ctx context.Context, userID string) (*room.User, error) {
	body, err := c.get(ctx, "/users/"+userID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	var user room.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if user.UserID == "" {
		user.UserID = userID
	}
	return &user, nil
}
