// Package orchestrator coordinates every board mutation: it resolves and
// validates configuration, consults the capability gate before any state is
// touched, drives the position manager, and announces each applied change on
// the board event channel.
//
// The ordering of every operation is validate, then mutate, then announce.
// A gated-field rejection therefore leaves both the store and every room
// observer exactly as they were.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftboard/driftboard/internal/agile"
	"github.com/driftboard/driftboard/internal/gate"
	"github.com/driftboard/driftboard/internal/position"
	"github.com/driftboard/driftboard/pkg/board"
)

// Announcer publishes an envelope describing an applied mutation. Implemented
// by *board.Client for production; tests substitute a recorder.
type Announcer interface {
	PublishEvent(ctx context.Context, env *board.Envelope) error
}

// Orchestrator owns the mutation path for boards, columns, swim lanes, cards
// and memberships.
type Orchestrator struct {
	store     *board.Client
	positions *position.Manager
	announcer Announcer

	// origin identifies this mutation source on the event channel. It must
	// differ from the relay server's origin so the local bridge delivers
	// orchestrator announcements to local rooms instead of deduplicating them.
	origin string

	log zerolog.Logger
}

// New creates an orchestrator over the given store.
func New(store *board.Client, announcer Announcer, origin string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		positions: position.NewManager(store),
		announcer: announcer,
		origin:    origin,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// CreateBoard creates a board from a template with optional configuration
// overrides. The template's default columns are created at positions 0..n-1,
// the owner is recorded as a member with the owner role, and an invite token
// is generated for shareable links.
func (o *Orchestrator) CreateBoard(ctx context.Context, ownerID, name, template string, overrides *board.ConfigPatch) (*board.Board, []*board.Column, error) {
	cfg, err := agile.Resolve(template, overrides)
	if err != nil {
		return nil, nil, err
	}
	if err := gate.ValidateConfigDependencies(&cfg); err != nil {
		return nil, nil, err
	}

	tpl, err := agile.LookupTemplate(template)
	if err != nil {
		return nil, nil, err
	}

	b := &board.Board{
		ID:          uuid.New().String(),
		Name:        name,
		OwnerID:     ownerID,
		Template:    template,
		Config:      cfg,
		InviteToken: uuid.New().String(),
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := o.store.PutBoard(ctx, b); err != nil {
		return nil, nil, err
	}

	if err := o.store.PutMember(ctx, b.ID, &board.Member{
		UserID:     ownerID,
		Role:       board.RoleOwner,
		JoinedAtMs: b.CreatedAtMs,
	}); err != nil {
		return nil, nil, err
	}

	columns := make([]*board.Column, 0, len(tpl.DefaultColumns))
	stubs := make([]board.EntityStub, 0, len(tpl.DefaultColumns))
	for i, colName := range tpl.DefaultColumns {
		col := &board.Column{
			ID:       uuid.New().String(),
			BoardID:  b.ID,
			Name:     colName,
			Position: i,
		}
		if err := o.store.PutColumn(ctx, col); err != nil {
			return nil, nil, err
		}
		columns = append(columns, col)
		stubs = append(stubs, board.EntityStub{ID: col.ID, Position: i})
	}
	if err := o.store.WritePositions(ctx, board.ColumnsScope(b.ID), stubs); err != nil {
		return nil, nil, err
	}

	o.log.Info().
		Str("board_id", b.ID).
		Str("template", template).
		Int("columns", len(columns)).
		Msg("board created")
	return b, columns, nil
}

// GetBoard retrieves a board by ID.
func (o *Orchestrator) GetBoard(ctx context.Context, boardID string) (*board.Board, error) {
	return o.store.GetBoard(ctx, boardID)
}

// UpdateBoardConfig merges a partial configuration update into the board's
// current configuration. The merged result must pass both field validation and
// the feature dependency check before anything is written.
func (o *Orchestrator) UpdateBoardConfig(ctx context.Context, boardID string, patch *board.ConfigPatch) (*board.AgileConfig, error) {
	b, err := o.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	cfg, err := agile.MergeConfigs(&b.Config, patch)
	if err != nil {
		return nil, err
	}
	if err := gate.ValidateConfigDependencies(&cfg); err != nil {
		return nil, err
	}

	b.Config = cfg
	if err := o.store.PutBoard(ctx, b); err != nil {
		return nil, err
	}

	o.announce(ctx, board.EventBoardUpdated, boardID, map[string]any{"config": cfg})
	return &cfg, nil
}

// PlanTemplateUpgrade returns the advisory plan for switching the board to
// another template. Nothing is mutated.
func (o *Orchestrator) PlanTemplateUpgrade(ctx context.Context, boardID, toTemplate string, preserveExisting bool) (*agile.UpgradePlan, error) {
	b, err := o.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return agile.PlanUpgrade(b.Template, toTemplate, preserveExisting)
}

// ApplyTemplateUpgrade switches the board to another template: missing target
// columns are appended after the existing ones, and, when preservation is not
// requested, columns the target template drops are removed. A non-empty column
// blocks the whole upgrade with a NotEmptyError before anything is written.
func (o *Orchestrator) ApplyTemplateUpgrade(ctx context.Context, boardID, toTemplate string, preserveExisting bool) (*agile.UpgradePlan, error) {
	b, err := o.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	plan, err := agile.PlanUpgrade(b.Template, toTemplate, preserveExisting)
	if err != nil {
		return nil, err
	}
	if err := gate.ValidateConfigDependencies(&plan.NewConfig); err != nil {
		return nil, err
	}

	columns, err := o.Columns(ctx, boardID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*board.Column, len(columns))
	for _, col := range columns {
		byName[col.Name] = col
	}

	// Check every removal candidate up front so a blocked column leaves the
	// board untouched.
	var removals []*board.Column
	if !preserveExisting {
		for _, name := range plan.ColumnsToRemove {
			col, ok := byName[name]
			if !ok {
				continue
			}
			n, err := o.columnCardCount(ctx, boardID, col.ID)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return nil, &board.NotEmptyError{Kind: "column", ID: col.ID, Dependents: n}
			}
			removals = append(removals, col)
		}
	}

	for _, name := range plan.ColumnsToAdd {
		if _, exists := byName[name]; exists {
			continue
		}
		if _, err := o.AddColumn(ctx, boardID, name, nil); err != nil {
			return nil, err
		}
	}
	for _, col := range removals {
		if err := o.RemoveColumn(ctx, boardID, col.ID); err != nil {
			return nil, err
		}
	}

	b.Template = toTemplate
	b.Config = plan.NewConfig
	if err := o.store.PutBoard(ctx, b); err != nil {
		return nil, err
	}

	o.announce(ctx, board.EventBoardUpdated, boardID, map[string]any{
		"template": toTemplate,
		"config":   plan.NewConfig,
	})
	o.log.Info().
		Str("board_id", boardID).
		Str("from", plan.FromTemplate).
		Str("to", toTemplate).
		Msg("template upgrade applied")
	return plan, nil
}

// AddColumn creates a column in a board. Without a requested position the
// column is appended; a requested position shifts later columns up by one.
func (o *Orchestrator) AddColumn(ctx context.Context, boardID, name string, requested *int) (*board.Column, error) {
	if _, err := o.store.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}

	col := &board.Column{
		ID:      uuid.New().String(),
		BoardID: boardID,
		Name:    name,
	}
	if err := o.store.PutColumn(ctx, col); err != nil {
		return nil, err
	}

	pos, err := o.positions.Insert(ctx, board.ColumnsScope(boardID), col.ID, requested)
	if err != nil {
		return nil, err
	}
	col.Position = pos
	return col, nil
}

// RenameColumn changes a column's display name. Ordering is untouched.
func (o *Orchestrator) RenameColumn(ctx context.Context, columnID, name string) (*board.Column, error) {
	col, err := o.store.GetColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	col.Name = name
	if err := o.store.PutColumn(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

// ReorderColumns atomically applies a full permutation of the board's columns.
// A partial or inflated permutation is rejected with nothing applied.
func (o *Orchestrator) ReorderColumns(ctx context.Context, boardID string, orderedIDs []string) error {
	if err := o.positions.Reorder(ctx, board.ColumnsScope(boardID), orderedIDs); err != nil {
		return err
	}
	o.announce(ctx, board.EventColumnReordered, boardID, map[string]any{"order": orderedIDs})
	return nil
}

// RemoveColumn deletes a column and closes the positional gap. A column that
// still contains cards, in any swim lane, blocks with a NotEmptyError.
func (o *Orchestrator) RemoveColumn(ctx context.Context, boardID, columnID string) error {
	n, err := o.columnCardCount(ctx, boardID, columnID)
	if err != nil {
		return err
	}
	if n > 0 {
		return &board.NotEmptyError{Kind: "column", ID: columnID, Dependents: n}
	}

	if err := o.positions.Remove(ctx, board.ColumnsScope(boardID), columnID); err != nil {
		return err
	}
	return o.store.DeleteColumn(ctx, columnID)
}

// AddSwimLane creates a swim lane in a board, appended unless a position is
// requested.
func (o *Orchestrator) AddSwimLane(ctx context.Context, boardID, name string, requested *int) (*board.SwimLane, error) {
	if _, err := o.store.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}

	lane := &board.SwimLane{
		ID:      uuid.New().String(),
		BoardID: boardID,
		Name:    name,
	}
	if err := o.store.PutSwimLane(ctx, lane); err != nil {
		return nil, err
	}

	pos, err := o.positions.Insert(ctx, board.LanesScope(boardID), lane.ID, requested)
	if err != nil {
		return nil, err
	}
	lane.Position = pos
	return lane, nil
}

// ReorderSwimLanes atomically applies a full permutation of the board's lanes.
func (o *Orchestrator) ReorderSwimLanes(ctx context.Context, boardID string, orderedIDs []string) error {
	return o.positions.Reorder(ctx, board.LanesScope(boardID), orderedIDs)
}

// RemoveSwimLane deletes a swim lane. A lane still holding cards in any
// column blocks with a NotEmptyError.
func (o *Orchestrator) RemoveSwimLane(ctx context.Context, boardID, laneID string) error {
	columns, err := o.store.FindScope(ctx, board.ColumnsScope(boardID))
	if err != nil {
		return err
	}
	total := 0
	for _, col := range columns {
		n, err := o.store.ScopeLen(ctx, board.CardsScope(col.ID, laneID))
		if err != nil {
			return err
		}
		total += n
	}
	if total > 0 {
		return &board.NotEmptyError{Kind: "swimlane", ID: laneID, Dependents: total}
	}

	if err := o.positions.Remove(ctx, board.LanesScope(boardID), laneID); err != nil {
		return err
	}
	return o.store.DeleteSwimLane(ctx, laneID)
}

// CreateCard creates a card in a column (optionally inside a swim lane). Every
// gated field in the patch is validated against the board's configuration
// before any state is touched; a rejection therefore changes no positions and
// announces nothing. When the configuration requires estimation, a new card
// must carry story points.
func (o *Orchestrator) CreateCard(ctx context.Context, boardID, columnID, laneID, title, createdBy string, patch *board.CardPatch, requested *int) (*board.Card, error) {
	b, err := o.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	if err := gate.CheckCardFields(&b.Config, patch, "card.create"); err != nil {
		return nil, err
	}
	if b.Config.RequireEstimation && b.Config.Features.Enabled(board.FeatureStoryPoints) {
		if patch == nil || patch.StoryPoints == nil {
			return nil, fmt.Errorf("board requires estimation: new cards must carry story points")
		}
	}

	now := time.Now().UnixMilli()
	card := &board.Card{
		ID:          uuid.New().String(),
		BoardID:     boardID,
		ColumnID:    columnID,
		LaneID:      laneID,
		Title:       title,
		IssueType:   b.Config.DefaultIssueType,
		CreatedBy:   createdBy,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
	applyCardPatch(card, patch)

	if err := o.store.PutCard(ctx, card); err != nil {
		return nil, err
	}

	pos, err := o.positions.Insert(ctx, board.CardsScope(columnID, laneID), card.ID, requested)
	if err != nil {
		return nil, err
	}
	card.Position = pos

	o.announce(ctx, board.EventCardCreated, boardID, card)
	return card, nil
}

// GetCard retrieves a card by ID, with its position filled from its scope.
func (o *Orchestrator) GetCard(ctx context.Context, cardID string) (*board.Card, error) {
	card, err := o.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	stubs, err := o.store.FindScope(ctx, board.CardsScope(card.ColumnID, card.LaneID))
	if err != nil {
		return nil, err
	}
	for _, s := range stubs {
		if s.ID == card.ID {
			card.Position = s.Position
			break
		}
	}
	return card, nil
}

// UpdateCard applies a partial update to a card. Gated fields are validated
// against the board's configuration before the card is touched.
func (o *Orchestrator) UpdateCard(ctx context.Context, cardID string, patch *board.CardPatch) (*board.Card, error) {
	card, err := o.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	b, err := o.store.GetBoard(ctx, card.BoardID)
	if err != nil {
		return nil, err
	}

	if err := gate.CheckCardFields(&b.Config, patch, "card.update"); err != nil {
		return nil, err
	}

	applyCardPatch(card, patch)
	card.UpdatedAtMs = time.Now().UnixMilli()

	if err := o.store.PutCard(ctx, card); err != nil {
		return nil, err
	}

	o.announce(ctx, board.EventCardUpdated, card.BoardID, card)
	return card, nil
}

// MoveCard relocates a card to a column (and optional swim lane), at an
// optional requested position. Same-scope moves reorder in place; cross-scope
// moves rewrite both orderings in a single store transaction. The returned
// card carries its assigned destination position.
func (o *Orchestrator) MoveCard(ctx context.Context, cardID, toColumnID, toLaneID string, requested *int) (*board.Card, error) {
	card, err := o.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	fromScope := board.CardsScope(card.ColumnID, card.LaneID)
	toScope := board.CardsScope(toColumnID, toLaneID)

	pos, err := o.positions.Move(ctx, fromScope, toScope, cardID, requested)
	if err != nil {
		return nil, err
	}

	card.ColumnID = toColumnID
	card.LaneID = toLaneID
	card.Position = pos
	card.UpdatedAtMs = time.Now().UnixMilli()
	if err := o.store.PutCard(ctx, card); err != nil {
		return nil, err
	}

	o.announce(ctx, board.EventCardMoved, card.BoardID, map[string]any{
		"card_id":   card.ID,
		"column_id": toColumnID,
		"lane_id":   toLaneID,
		"position":  pos,
	})
	return card, nil
}

// ReorderCards atomically applies a full permutation of one card scope.
func (o *Orchestrator) ReorderCards(ctx context.Context, boardID, columnID, laneID string, orderedIDs []string) error {
	if err := o.positions.Reorder(ctx, board.CardsScope(columnID, laneID), orderedIDs); err != nil {
		return err
	}
	o.announce(ctx, board.EventCardMoved, boardID, map[string]any{
		"column_id": columnID,
		"lane_id":   laneID,
		"order":     orderedIDs,
	})
	return nil
}

// DeleteCard removes a card and closes the gap in its scope.
func (o *Orchestrator) DeleteCard(ctx context.Context, cardID string) error {
	card, err := o.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}

	if err := o.positions.Remove(ctx, board.CardsScope(card.ColumnID, card.LaneID), cardID); err != nil {
		return err
	}
	if err := o.store.DeleteCard(ctx, cardID); err != nil {
		return err
	}

	o.announce(ctx, board.EventCardDeleted, card.BoardID, map[string]any{"card_id": cardID})
	return nil
}

// AddMember records a user's membership of a board under a role.
func (o *Orchestrator) AddMember(ctx context.Context, boardID, userID string, role board.Role) error {
	if _, err := o.store.GetBoard(ctx, boardID); err != nil {
		return err
	}
	return o.store.PutMember(ctx, boardID, &board.Member{
		UserID:     userID,
		Role:       role,
		JoinedAtMs: time.Now().UnixMilli(),
	})
}

// JoinWithInvite adds a user as a member if the invite token matches the
// board's current token. Existing members keep their role.
func (o *Orchestrator) JoinWithInvite(ctx context.Context, boardID, inviteToken, userID string) (*board.Member, error) {
	b, err := o.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if b.InviteToken == "" || b.InviteToken != inviteToken {
		return nil, &board.AccessDeniedError{UserID: userID, BoardID: boardID, Required: board.RoleMember}
	}

	if existing, err := o.store.GetMember(ctx, boardID, userID); err == nil {
		return existing, nil
	} else if !board.IsNotFound(err) {
		return nil, err
	}

	m := &board.Member{UserID: userID, Role: board.RoleMember, JoinedAtMs: time.Now().UnixMilli()}
	if err := o.store.PutMember(ctx, boardID, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveMember removes a user from a board. The owner cannot be removed.
func (o *Orchestrator) RemoveMember(ctx context.Context, boardID, userID string) error {
	b, err := o.store.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if b.OwnerID == userID {
		return fmt.Errorf("cannot remove the board owner")
	}
	return o.store.RemoveMember(ctx, boardID, userID)
}

// HasBoardAccess implements the relay's access check: membership at or above
// the minimum role. Unknown boards and non-members simply lack access.
func (o *Orchestrator) HasBoardAccess(ctx context.Context, identity *board.Identity, boardID string, min board.Role) (bool, error) {
	m, err := o.store.GetMember(ctx, boardID, identity.UserID)
	if err != nil {
		if board.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return m.Role.AtLeast(min), nil
}

// columnCardCount sums the cards of a column across the laneless scope and
// every swim lane scope of its board.
func (o *Orchestrator) columnCardCount(ctx context.Context, boardID, columnID string) (int, error) {
	total, err := o.store.ScopeLen(ctx, board.CardsScope(columnID, ""))
	if err != nil {
		return 0, err
	}

	lanes, err := o.store.FindScope(ctx, board.LanesScope(boardID))
	if err != nil {
		return 0, err
	}
	for _, lane := range lanes {
		n, err := o.store.ScopeLen(ctx, board.CardsScope(columnID, lane.ID))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// announce publishes an applied-mutation event. Best-effort: the mutation is
// already durable, so a publish failure is logged and not surfaced.
func (o *Orchestrator) announce(ctx context.Context, event, boardID string, payload any) {
	if o.announcer == nil {
		return
	}

	env := &board.Envelope{
		Event:    event,
		BoardID:  boardID,
		Origin:   o.origin,
		SentAtMs: time.Now().UnixMilli(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			o.log.Warn().Err(err).Str("event", event).Msg("failed to marshal announcement payload")
			return
		}
		env.Payload = raw
	}

	if err := o.announcer.PublishEvent(ctx, env); err != nil {
		o.log.Warn().Err(err).Str("event", event).Msg("failed to announce mutation")
	}
}

// applyCardPatch copies every set field of the patch onto the card.
func applyCardPatch(card *board.Card, patch *board.CardPatch) {
	if patch == nil {
		return
	}
	if patch.Title != nil {
		card.Title = *patch.Title
	}
	if patch.Description != nil {
		card.Description = *patch.Description
	}
	if patch.IssueType != nil {
		card.IssueType = *patch.IssueType
	}
	if patch.StoryPoints != nil {
		card.StoryPoints = patch.StoryPoints
	}
	if patch.Priority != nil {
		card.Priority = *patch.Priority
	}
	if patch.OriginalEstimateMins != nil {
		card.OriginalEstimateMins = patch.OriginalEstimateMins
	}
	if patch.RemainingEstimateMins != nil {
		card.RemainingEstimateMins = patch.RemainingEstimateMins
	}
	if patch.EpicID != nil {
		card.EpicID = *patch.EpicID
	}
	if patch.SprintID != nil {
		card.SprintID = *patch.SprintID
	}
}
