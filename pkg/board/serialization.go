package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like the
// agile configuration are JSON-encoded into single hash fields. Positions are
// deliberately NOT stored on entity hashes: a scope's ordering ZSET is the
// single source of truth, so an entity's position can never drift from its
// scope.

// BoardToHash converts a Board struct to a Redis hash format.
// The agile configuration is JSON-encoded into one field.
func BoardToHash(b *Board) (map[string]interface{}, error) {
	configJSON, err := json.Marshal(b.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agile config: %w", err)
	}

	hash := map[string]interface{}{
		"id":            b.ID,
		"name":          b.Name,
		"owner_id":      b.OwnerID,
		"template":      b.Template,
		"config":        string(configJSON),
		"invite_token":  b.InviteToken,
		"created_at_ms": b.CreatedAtMs,
	}

	return hash, nil
}

// HashToBoard converts a Redis hash to a Board struct.
func HashToBoard(hash map[string]string) (*Board, error) {
	var config AgileConfig
	if configJSON := hash["config"]; configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Board{
		ID:          hash["id"],
		Name:        hash["name"],
		OwnerID:     hash["owner_id"],
		Template:    hash["template"],
		Config:      config,
		InviteToken: hash["invite_token"],
		CreatedAtMs: createdAtMs,
	}, nil
}

// ColumnToHash converts a Column struct to a Redis hash format.
// Position is omitted; it lives in the board's column scope.
func ColumnToHash(c *Column) map[string]interface{} {
	return map[string]interface{}{
		"id":       c.ID,
		"board_id": c.BoardID,
		"name":     c.Name,
	}
}

// HashToColumn converts a Redis hash to a Column struct. Position is left at
// zero; callers fill it from the scope when they need it.
func HashToColumn(hash map[string]string) *Column {
	return &Column{
		ID:      hash["id"],
		BoardID: hash["board_id"],
		Name:    hash["name"],
	}
}

// SwimLaneToHash converts a SwimLane struct to a Redis hash format.
func SwimLaneToHash(l *SwimLane) map[string]interface{} {
	return map[string]interface{}{
		"id":       l.ID,
		"board_id": l.BoardID,
		"name":     l.Name,
	}
}

// HashToSwimLane converts a Redis hash to a SwimLane struct.
func HashToSwimLane(hash map[string]string) *SwimLane {
	return &SwimLane{
		ID:      hash["id"],
		BoardID: hash["board_id"],
		Name:    hash["name"],
	}
}

// CardToHash converts a Card struct to a Redis hash format.
// Optional gated fields are JSON-encoded together so absence survives the
// round trip (a flat hash cannot distinguish unset from zero).
func CardToHash(c *Card) (map[string]interface{}, error) {
	agileJSON, err := json.Marshal(cardAgileFields{
		StoryPoints:           c.StoryPoints,
		Priority:              c.Priority,
		OriginalEstimateMins:  c.OriginalEstimateMins,
		RemainingEstimateMins: c.RemainingEstimateMins,
		EpicID:                c.EpicID,
		SprintID:              c.SprintID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agile fields: %w", err)
	}

	hash := map[string]interface{}{
		"id":            c.ID,
		"board_id":      c.BoardID,
		"column_id":     c.ColumnID,
		"lane_id":       c.LaneID,
		"title":         c.Title,
		"description":   c.Description,
		"issue_type":    string(c.IssueType),
		"created_by":    c.CreatedBy,
		"created_at_ms": c.CreatedAtMs,
		"updated_at_ms": c.UpdatedAtMs,
		"agile_fields":  string(agileJSON),
	}

	return hash, nil
}

// HashToCard converts a Redis hash to a Card struct.
func HashToCard(hash map[string]string) (*Card, error) {
	var agile cardAgileFields
	if agileJSON := hash["agile_fields"]; agileJSON != "" {
		if err := json.Unmarshal([]byte(agileJSON), &agile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agile_fields: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &Card{
		ID:                    hash["id"],
		BoardID:               hash["board_id"],
		ColumnID:              hash["column_id"],
		LaneID:                hash["lane_id"],
		Title:                 hash["title"],
		Description:           hash["description"],
		IssueType:             IssueType(hash["issue_type"]),
		CreatedBy:             hash["created_by"],
		CreatedAtMs:           createdAtMs,
		UpdatedAtMs:           updatedAtMs,
		StoryPoints:           agile.StoryPoints,
		Priority:              agile.Priority,
		OriginalEstimateMins:  agile.OriginalEstimateMins,
		RemainingEstimateMins: agile.RemainingEstimateMins,
		EpicID:                agile.EpicID,
		SprintID:              agile.SprintID,
	}, nil
}

// cardAgileFields is the JSON shape of the gated optional card fields inside
// the card hash.
type cardAgileFields struct {
	StoryPoints           *float64 `json:"story_points,omitempty"`
	Priority              Priority `json:"priority,omitempty"`
	OriginalEstimateMins  *int     `json:"original_estimate_mins,omitempty"`
	RemainingEstimateMins *int     `json:"remaining_estimate_mins,omitempty"`
	EpicID                string   `json:"epic_id,omitempty"`
	SprintID              string   `json:"sprint_id,omitempty"`
}

// MemberToJSON encodes a member for storage in the board members hash.
func MemberToJSON(m *Member) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal member: %w", err)
	}
	return string(data), nil
}

// JSONToMember decodes a member from the board members hash.
func JSONToMember(data string) (*Member, error) {
	var m Member
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}
	return &m, nil
}
