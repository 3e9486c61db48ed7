package orchestrator

import (
	"context"

	"github.com/driftboard/driftboard/pkg/board"
)

// Snapshot is a consistent read of a whole board: every column and lane in
// scope order, and each column's cards grouped by lane ("" for laneless).
type Snapshot struct {
	Board   *board.Board             `json:"board"`
	Columns []*board.Column          `json:"columns"`
	Lanes   []*board.SwimLane        `json:"lanes,omitempty"`
	Cards   map[string][]*board.Card `json:"cards"` // keyed by column ID
	Members map[string]*board.Member `json:"members"`
}

// Columns returns a board's columns in position order.
func (o *Orchestrator) Columns(ctx context.Context, boardID string) ([]*board.Column, error) {
	stubs, err := o.store.FindScope(ctx, board.ColumnsScope(boardID))
	if err != nil {
		return nil, err
	}

	columns := make([]*board.Column, 0, len(stubs))
	for _, s := range stubs {
		col, err := o.store.GetColumn(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		col.Position = s.Position
		columns = append(columns, col)
	}
	return columns, nil
}

// SwimLanes returns a board's swim lanes in position order.
func (o *Orchestrator) SwimLanes(ctx context.Context, boardID string) ([]*board.SwimLane, error) {
	stubs, err := o.store.FindScope(ctx, board.LanesScope(boardID))
	if err != nil {
		return nil, err
	}

	lanes := make([]*board.SwimLane, 0, len(stubs))
	for _, s := range stubs {
		lane, err := o.store.GetSwimLane(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		lane.Position = s.Position
		lanes = append(lanes, lane)
	}
	return lanes, nil
}

// Cards returns one card scope (a column, optionally restricted to a lane) in
// position order.
func (o *Orchestrator) Cards(ctx context.Context, columnID, laneID string) ([]*board.Card, error) {
	stubs, err := o.store.FindScope(ctx, board.CardsScope(columnID, laneID))
	if err != nil {
		return nil, err
	}

	cards := make([]*board.Card, 0, len(stubs))
	for _, s := range stubs {
		card, err := o.store.GetCard(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		card.Position = s.Position
		cards = append(cards, card)
	}
	return cards, nil
}

// GetSnapshot assembles the full state of a board. Card lists concatenate the
// laneless scope with each lane scope in lane order, so within one column the
// cards arrive grouped by lane.
func (o *Orchestrator) GetSnapshot(ctx context.Context, boardID string) (*Snapshot, error) {
	b, err := o.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	columns, err := o.Columns(ctx, boardID)
	if err != nil {
		return nil, err
	}
	lanes, err := o.SwimLanes(ctx, boardID)
	if err != nil {
		return nil, err
	}
	members, err := o.store.GetMembers(ctx, boardID)
	if err != nil {
		return nil, err
	}

	cards := make(map[string][]*board.Card, len(columns))
	for _, col := range columns {
		colCards, err := o.Cards(ctx, col.ID, "")
		if err != nil {
			return nil, err
		}
		for _, lane := range lanes {
			laneCards, err := o.Cards(ctx, col.ID, lane.ID)
			if err != nil {
				return nil, err
			}
			colCards = append(colCards, laneCards...)
		}
		cards[col.ID] = colCards
	}

	return &Snapshot{
		Board:   b,
		Columns: columns,
		Lanes:   lanes,
		Cards:   cards,
		Members: members,
	}, nil
}
