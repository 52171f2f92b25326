package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/insightloop/client-go/internal/room"
)

// RoomSnapshot is the room state fetched over HTTP before the event channel
// takes over.
type RoomSnapshot struct {
	Name    string        `json:"name"`
	Phase   string        `json:"phase,omitempty"`
	Columns []room.Column `json:"columns"`
	Cards   []room.Card   `json:"cards"`
}

// Steps is the room's phase workflow as the server reports it.
type Steps struct {
	PhasesList   []string `json:"phasesList"`
	CurrentPhase string   `json:"currentPhase"`
}

// CreateRoom creates a new room and returns its id.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	body, err := c.postJSON(ctx, "/rooms", nil)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}

	var response struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("unmarshal create room response: %w", err)
	}
	if response.RoomID == "" {
		return "", fmt.Errorf("create room: server returned no room id")
	}
	return response.RoomID, nil
}

// GetRoom fetches the snapshot used to bootstrap the room store.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*RoomSnapshot, error) {
	body, err := c.get(ctx, "/rooms/"+roomID)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}

	var snapshot RoomSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal room snapshot: %w", err)
	}
	return &snapshot, nil
}

// RenameRoom updates the room's display name.
func (c *Client) RenameRoom(ctx context.Context, roomID, name string) error {
	payload := struct {
		Name string `json:"name"`
	}{Name: name}

	if _, err := c.putJSON(ctx, "/rooms/"+roomID+"/name", payload); err != nil {
		return fmt.Errorf("rename room %s: %w", roomID, err)
	}
	return nil
}

// GetSteps fetches the phase workflow and the currently active phase.
func (c *Client) GetSteps(ctx context.Context, roomID string) (*Steps, error) {
	body, err := c.get(ctx, "/rooms/"+roomID+"/steps")
	if err != nil {
		return nil, fmt.Errorf("get steps for room %s: %w", roomID, err)
	}

	var steps Steps
	if err := json.Unmarshal(body, &steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &steps, nil
}
