package board

import (
	"fmt"

	"github.com/google/uuid"
)

// Board is the root aggregate: it owns columns, swim lanes, cards and members,
// and carries the resolved agile configuration that gates which card fields
// and operations are legal.
type Board struct {
	ID          string      `json:"id"`           // UUID - unique identifier for this board
	Name        string      `json:"name"`         // Display name
	OwnerID     string      `json:"owner_id"`     // User ID of the single owner
	Template    string      `json:"template"`     // Template identifier the board was created from
	Config      AgileConfig `json:"config"`       // Resolved configuration (template + overrides)
	InviteToken string      `json:"invite_token"` // Opaque token for invite links
	CreatedAtMs int64       `json:"created_at_ms"`
}

// Column is an ordered vertical lane of cards within a board.
// Its position lives in the board's column scope, not in the column record.
type Column struct {
	ID       string `json:"id"`       // UUID
	BoardID  string `json:"board_id"` // Owning board UUID
	Name     string `json:"name"`
	Position int    `json:"position"` // Filled from the scope on read
}

// SwimLane is an optional horizontal partition of a board. Cards may belong
// to a column alone or to a column+lane pair.
type SwimLane struct {
	ID       string `json:"id"`
	BoardID  string `json:"board_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Card is a unit of work. The agile fields (story points, priority, estimates,
// epic and sprint references) are only legal when the owning board's resolved
// configuration enables the corresponding feature.
type Card struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"board_id"`
	ColumnID    string    `json:"column_id"`
	LaneID      string    `json:"lane_id,omitempty"` // Empty when the card is not in a swim lane
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Position    int       `json:"position"`
	IssueType   IssueType `json:"issue_type"`
	CreatedBy   string    `json:"created_by"`
	CreatedAtMs int64     `json:"created_at_ms"`
	UpdatedAtMs int64     `json:"updated_at_ms"`

	// Gated agile fields. Pointers distinguish "unset" from zero values.
	StoryPoints           *float64 `json:"story_points,omitempty"`
	Priority              Priority `json:"priority,omitempty"`
	OriginalEstimateMins  *int     `json:"original_estimate_mins,omitempty"`
	RemainingEstimateMins *int     `json:"remaining_estimate_mins,omitempty"`
	EpicID                string   `json:"epic_id,omitempty"`
	SprintID              string   `json:"sprint_id,omitempty"`
}

// Member associates a user with a board under a role.
type Member struct {
	UserID     string `json:"user_id"`
	Role       Role   `json:"role"`
	JoinedAtMs int64  `json:"joined_at_ms"`
}

// Identity is an authenticated real-time or API caller.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Role defines a member's privilege level on a board.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// roleRank orders roles for minimum-role checks. Higher is more privileged.
func roleRank(r Role) int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether the role grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank(r) >= roleRank(min)
}

// Validate checks if the Role is a valid enum value.
func (r Role) Validate() error {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return nil
	default:
		return fmt.Errorf("unknown role: %q", r)
	}
}

// IssueType classifies a card.
type IssueType string

const (
	IssueTypeTask  IssueType = "task"
	IssueTypeStory IssueType = "story"
	IssueTypeBug   IssueType = "bug"
	IssueTypeEpic  IssueType = "epic"
)

// Validate checks if the IssueType is a valid enum value.
func (it IssueType) Validate() error {
	switch it {
	case IssueTypeTask, IssueTypeStory, IssueTypeBug, IssueTypeEpic:
		return nil
	default:
		return fmt.Errorf("unknown issue type: %q", it)
	}
}

// Priority classifies a card's urgency. Empty means unset.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Validate checks if the Priority is a valid enum value. Empty is not valid;
// callers treat absence separately.
func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// Feature names one toggleable agile capability of a board.
type Feature string

const (
	FeatureSprints         Feature = "sprints"
	FeatureStoryPoints     Feature = "storyPoints"
	FeatureEpics           Feature = "epics"
	FeatureTimeTracking    Feature = "timeTracking"
	FeatureBurndownCharts  Feature = "burndownCharts"
	FeatureCustomWorkflows Feature = "customWorkflows"
	FeatureLabels          Feature = "labels"
	FeaturePriorities      Feature = "priorities"
)

// AllFeatures lists every feature in a stable order, for iteration in
// upgrade planning and tests.
var AllFeatures = []Feature{
	FeatureSprints,
	FeatureStoryPoints,
	FeatureEpics,
	FeatureTimeTracking,
	FeatureBurndownCharts,
	FeatureCustomWorkflows,
	FeatureLabels,
	FeaturePriorities,
}

// Validate checks if the Feature is a valid enum value.
func (f Feature) Validate() error {
	switch f {
	case FeatureSprints, FeatureStoryPoints, FeatureEpics, FeatureTimeTracking,
		FeatureBurndownCharts, FeatureCustomWorkflows, FeatureLabels, FeaturePriorities:
		return nil
	default:
		return fmt.Errorf("unknown feature: %q", f)
	}
}

// Features is the fixed set of boolean feature flags. A struct rather than a
// map so that feature keys are checked at compile time.
type Features struct {
	Sprints         bool `json:"sprints"`
	StoryPoints     bool `json:"storyPoints"`
	Epics           bool `json:"epics"`
	TimeTracking    bool `json:"timeTracking"`
	BurndownCharts  bool `json:"burndownCharts"`
	CustomWorkflows bool `json:"customWorkflows"`
	Labels          bool `json:"labels"`
	Priorities      bool `json:"priorities"`
}

// Enabled reports whether the named feature flag is set.
func (f Features) Enabled(feature Feature) bool {
	switch feature {
	case FeatureSprints:
		return f.Sprints
	case FeatureStoryPoints:
		return f.StoryPoints
	case FeatureEpics:
		return f.Epics
	case FeatureTimeTracking:
		return f.TimeTracking
	case FeatureBurndownCharts:
		return f.BurndownCharts
	case FeatureCustomWorkflows:
		return f.CustomWorkflows
	case FeatureLabels:
		return f.Labels
	case FeaturePriorities:
		return f.Priorities
	default:
		return false
	}
}

// AgileConfig is a board's resolved capability set: feature flags plus the
// scalar settings that parameterize them. Produced by the resolver from a
// template's base config merged with caller overrides.
type AgileConfig struct {
	Features           Features  `json:"features"`
	StoryPointScale    []float64 `json:"storyPointScale"`
	DefaultIssueType   IssueType `json:"defaultIssueType"`
	SprintDurationDays int       `json:"sprintDurationDays"`
	WorkingDaysPerWeek int       `json:"workingDaysPerWeek"`
	RequireEstimation  bool      `json:"requireEstimation"`
}

// FeaturesPatch is a partial update to Features. Nil fields are left untouched
// by a merge; the features sub-map merges key-by-key (deep), unlike the
// top-level scalars which replace wholesale.
type FeaturesPatch struct {
	Sprints         *bool `json:"sprints,omitempty"`
	StoryPoints     *bool `json:"storyPoints,omitempty"`
	Epics           *bool `json:"epics,omitempty"`
	TimeTracking    *bool `json:"timeTracking,omitempty"`
	BurndownCharts  *bool `json:"burndownCharts,omitempty"`
	CustomWorkflows *bool `json:"customWorkflows,omitempty"`
	Labels          *bool `json:"labels,omitempty"`
	Priorities      *bool `json:"priorities,omitempty"`
}

// ConfigPatch is a partial update to an AgileConfig. Nil (or nil-slice)
// fields are left untouched by a merge.
type ConfigPatch struct {
	Features           *FeaturesPatch `json:"features,omitempty"`
	StoryPointScale    []float64      `json:"storyPointScale,omitempty"`
	DefaultIssueType   *IssueType     `json:"defaultIssueType,omitempty"`
	SprintDurationDays *int           `json:"sprintDurationDays,omitempty"`
	WorkingDaysPerWeek *int           `json:"workingDaysPerWeek,omitempty"`
	RequireEstimation  *bool          `json:"requireEstimation,omitempty"`
}

// CardPatch is a partial update to a card. Nil fields are untouched. The
// capability gate inspects the patch before any mutation is applied.
type CardPatch struct {
	Title                 *string    `json:"title,omitempty"`
	Description           *string    `json:"description,omitempty"`
	IssueType             *IssueType `json:"issue_type,omitempty"`
	StoryPoints           *float64   `json:"story_points,omitempty"`
	Priority              *Priority  `json:"priority,omitempty"`
	OriginalEstimateMins  *int       `json:"original_estimate_mins,omitempty"`
	RemainingEstimateMins *int       `json:"remaining_estimate_mins,omitempty"`
	EpicID                *string    `json:"epic_id,omitempty"`
	SprintID              *string    `json:"sprint_id,omitempty"`
}

// EntityStub is the minimal view of an ordered entity within a scope:
// its identity and its zero-based position.
type EntityStub struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// Validate checks if the Board has valid field values.
func (b *Board) Validate() error {
	if !isValidUUID(b.ID) {
		return fmt.Errorf("invalid board ID: not a valid UUID")
	}
	if b.Name == "" {
		return fmt.Errorf("board name cannot be empty")
	}
	if b.OwnerID == "" {
		return fmt.Errorf("board owner cannot be empty")
	}
	if b.Template == "" {
		return fmt.Errorf("board template cannot be empty")
	}
	return nil
}

// Validate checks if the Column has valid field values.
func (c *Column) Validate() error {
	if !isValidUUID(c.ID) {
		return fmt.Errorf("invalid column ID: not a valid UUID")
	}
	if !isValidUUID(c.BoardID) {
		return fmt.Errorf("invalid board ID: not a valid UUID")
	}
	if c.Name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	return nil
}

// Validate checks if the SwimLane has valid field values.
func (l *SwimLane) Validate() error {
	if !isValidUUID(l.ID) {
		return fmt.Errorf("invalid swim lane ID: not a valid UUID")
	}
	if !isValidUUID(l.BoardID) {
		return fmt.Errorf("invalid board ID: not a valid UUID")
	}
	if l.Name == "" {
		return fmt.Errorf("swim lane name cannot be empty")
	}
	return nil
}

// Validate checks if the Card has valid field values. Gated-field legality is
// the capability gate's concern, not validated here.
func (c *Card) Validate() error {
	if !isValidUUID(c.ID) {
		return fmt.Errorf("invalid card ID: not a valid UUID")
	}
	if !isValidUUID(c.BoardID) {
		return fmt.Errorf("invalid board ID: not a valid UUID")
	}
	if !isValidUUID(c.ColumnID) {
		return fmt.Errorf("invalid column ID: not a valid UUID")
	}
	if c.LaneID != "" && !isValidUUID(c.LaneID) {
		return fmt.Errorf("invalid lane ID: not a valid UUID")
	}
	if c.Title == "" {
		return fmt.Errorf("card title cannot be empty")
	}
	if err := c.IssueType.Validate(); err != nil {
		return fmt.Errorf("invalid issue type: %w", err)
	}
	if c.Priority != "" {
		if err := c.Priority.Validate(); err != nil {
			return fmt.Errorf("invalid priority: %w", err)
		}
	}
	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
