package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleOwner, RoleViewer, true},
		{RoleOwner, RoleOwner, true},
		{RoleAdmin, RoleOwner, false},
		{RoleMember, RoleViewer, true},
		{RoleMember, RoleAdmin, false},
		{RoleViewer, RoleViewer, true},
		{RoleViewer, RoleMember, false},
		{Role("unknown"), RoleViewer, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.role.AtLeast(tt.min), "%s at least %s", tt.role, tt.min)
	}
}

func TestEnumValidation(t *testing.T) {
	assert.NoError(t, RoleAdmin.Validate())
	assert.Error(t, Role("emperor").Validate())

	assert.NoError(t, IssueTypeBug.Validate())
	assert.Error(t, IssueType("chore").Validate())

	assert.NoError(t, PriorityCritical.Validate())
	assert.Error(t, Priority("").Validate())

	for _, f := range AllFeatures {
		assert.NoError(t, f.Validate())
	}
	assert.Error(t, Feature("teleport").Validate())
}

func TestFeaturesEnabled(t *testing.T) {
	f := Features{Sprints: true, Labels: true}
	assert.True(t, f.Enabled(FeatureSprints))
	assert.True(t, f.Enabled(FeatureLabels))
	assert.False(t, f.Enabled(FeatureStoryPoints))
	assert.False(t, f.Enabled(Feature("teleport")))
}

func TestBoardValidate(t *testing.T) {
	valid := Board{ID: "0b0e7a60-4f5b-4c8e-9a3e-aaaaaaaaaaaa", Name: "X", OwnerID: "o", Template: "basic"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Board)
	}{
		{"bad id", func(b *Board) { b.ID = "nope" }},
		{"empty name", func(b *Board) { b.Name = "" }},
		{"empty owner", func(b *Board) { b.OwnerID = "" }},
		{"empty template", func(b *Board) { b.Template = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			assert.Error(t, b.Validate())
		})
	}
}

func TestCardValidate(t *testing.T) {
	valid := Card{
		ID:        "0b0e7a60-4f5b-4c8e-9a3e-aaaaaaaaaaaa",
		BoardID:   "0b0e7a60-4f5b-4c8e-9a3e-bbbbbbbbbbbb",
		ColumnID:  "0b0e7a60-4f5b-4c8e-9a3e-cccccccccccc",
		Title:     "T",
		IssueType: IssueTypeTask,
	}
	assert.NoError(t, valid.Validate())

	// An empty lane ID means "no lane" and is legal; a malformed one is not.
	withLane := valid
	withLane.LaneID = "not-a-uuid"
	assert.Error(t, withLane.Validate())

	noTitle := valid
	noTitle.Title = ""
	assert.Error(t, noTitle.Validate())

	badPriority := valid
	badPriority.Priority = Priority("shiny")
	assert.Error(t, badPriority.Validate())

	// Empty priority means unset and passes.
	assert.NoError(t, valid.Validate())
}
