package service

import (
	"context"
	"encoding/json"
	"time"

	"sousvide_simulator/internal/models"
	"sousvide_simulator/internal/repository"
)

// maxRawLength truncates stored frames; full payloads are not needed for
// test assertions.
const maxRawLength = 500

// MessageLogService records protocol frames into the message repository and
// serves the introspection queries of the control plane.
type MessageLogService struct {
	repo repository.MessageRepo
}

// NewMessageLogService wraps the repository layer.
func NewMessageLogService(repo repository.MessageRepo) *MessageLogService {
	return &MessageLogService{repo: repo}
}

// Record stores one frame, extracting command and requestId when the frame
// is parseable JSON. Recording is best-effort: a storage error never affects
// protocol handling.
func (s *MessageLogService) Record(ctx context.Context, direction string, raw []byte) {
	entry := models.LoggedMessage{
		Timestamp: time.Now().UTC(),
		Direction: direction,
		Raw:       truncate(string(raw), maxRawLength),
	}

	var probe struct {
		Command   string `json:"command"`
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		entry.Command = probe.Command
		entry.RequestID = probe.RequestID
	}

	_ = s.repo.Append(ctx, entry)
}

// List returns up to limit most recent messages, optionally filtered by
// direction ("inbound" or "outbound"; empty or "all" means both).
func (s *MessageLogService) List(ctx context.Context, limit int, direction string) ([]models.LoggedMessage, error) {
	if direction == "all" {
		direction = ""
	}
	return s.repo.List(ctx, limit, direction)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
