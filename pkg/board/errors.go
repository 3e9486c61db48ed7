package board

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy for the ordering and gating engine. Every error here stems
// from caller-supplied invalid intent, not transient infrastructure failure:
// the recovery is always to reject the single request, never to retry.

// ConfigValidationError reports a malformed agile configuration, naming the
// offending field.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid agile config: field %q: %s", e.Field, e.Reason)
}

// FeatureDisabledError reports an operation blocked by capability gating.
type FeatureDisabledError struct {
	Operation string
	Feature   Feature
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("operation %q requires feature %q which is disabled for this board", e.Operation, e.Feature)
}

// InvalidStoryPointsError reports a story-point value that is not a member of
// the board's configured scale.
type InvalidStoryPointsError struct {
	Points float64
	Scale  []float64
}

func (e *InvalidStoryPointsError) Error() string {
	return fmt.Sprintf("story points %v not in configured scale %v", e.Points, e.Scale)
}

// FeatureDependencyError reports unmet dependencies when enabling a feature.
type FeatureDependencyError struct {
	Feature Feature
	Unmet   []Feature
}

func (e *FeatureDependencyError) Error() string {
	names := make([]string, len(e.Unmet))
	for i, f := range e.Unmet {
		names[i] = string(f)
	}
	return fmt.Sprintf("feature %q requires disabled feature(s): %s", e.Feature, strings.Join(names, ", "))
}

// IncompleteReorderError reports a reorder permutation that is not a bijection
// over the scope's current member set. Nothing is applied when this is returned.
type IncompleteReorderError struct {
	Scope      Scope
	Missing    []string // IDs present in the scope but absent from the permutation
	Unexpected []string // IDs present in the permutation but absent from the scope
}

func (e *IncompleteReorderError) Error() string {
	return fmt.Sprintf("reorder of scope %q is not a full permutation (missing %d, unexpected %d)",
		e.Scope, len(e.Missing), len(e.Unexpected))
}

// NotEmptyError reports a delete blocked by undeletable dependents, e.g. a
// column that still contains cards.
type NotEmptyError struct {
	Kind       string // "column" or "swimlane"
	ID         string
	Dependents int
}

func (e *NotEmptyError) Error() string {
	return fmt.Sprintf("%s %s still contains %d card(s); relocate them first", e.Kind, e.ID, e.Dependents)
}

// AccessDeniedError reports a join or mutation attempted without sufficient role.
type AccessDeniedError struct {
	UserID   string
	BoardID  string
	Required Role
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("user %s lacks %q access to board %s", e.UserID, e.Required, e.BoardID)
}

// IsAccessDenied reports whether err is (or wraps) an AccessDeniedError.
func IsAccessDenied(err error) bool {
	var target *AccessDeniedError
	return errors.As(err, &target)
}

// IsFeatureDisabled reports whether err is (or wraps) a FeatureDisabledError.
func IsFeatureDisabled(err error) bool {
	var target *FeatureDisabledError
	return errors.As(err, &target)
}
