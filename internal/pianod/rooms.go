package pianod

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ListRooms opens a short-lived session, asks for the room list and closes it.
// Rooms are returned in the reverse of the order the controller reports them.
func ListRooms(ctx context.Context, url string, logger *zap.Logger, opts ...SessionOption) ([]string, error) {
	session := NewSession(url, logger, opts...)
	if err := session.Connect(ctx); err != nil {
		return nil, err
	}
	defer session.Close()

	if err := session.Send(ctx, "ROOM LIST"); err != nil {
		return nil, err
	}

	msg, err := session.ReceiveUntil(ctx, CodeListResult)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	var entries []roomEntry
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode room list: %w", err)
		}
	}

	rooms := make([]string, len(entries))
	for i, entry := range entries {
		rooms[len(entries)-1-i] = entry.Room
	}
	return rooms, nil
}
