package capability

import (
	"fmt"
	"strings"
)

// Diff names one field where child fails to be a reduction of parent.
type Diff struct {
	Field  string
	Child  string
	Parent string
}

// Violation collects every Diff found by SubsetOf, so a caller can report a
// complete, human-readable breakdown rather than stopping at the first
// mismatch.
type Violation struct {
	Diffs []Diff
}

func (v *Violation) Error() string {
	parts := make([]string, len(v.Diffs))
	for i, d := range v.Diffs {
		parts[i] = fmt.Sprintf("%s: child=%s parent=%s", d.Field, d.Child, d.Parent)
	}
	return "capability reduction violation: " + strings.Join(parts, "; ")
}

// SubsetOf reports whether c (the child) is a valid capability reduction of
// parent: effective-allowed(c) ⊆ effective-allowed(parent), c's
// max_presentations and window do not exceed parent's, and every
// ResourceLimits field of c does not exceed parent's. Returns nil when c ⊑
// parent, otherwise a *Violation naming every field that failed.
func (c Capabilities) SubsetOf(parent Capabilities) error {
	var diffs []Diff

	childAllowed := c.effectiveAllowed()
	parentAllowed := parent.effectiveAllowed()
	var extra []string
	for tool := range childAllowed {
		if _, ok := parentAllowed[tool]; !ok {
			extra = append(extra, tool)
		}
	}
	if len(extra) > 0 {
		diffs = append(diffs, Diff{
			Field:  "allowed_tools",
			Child:  strings.Join(extra, ","),
			Parent: "(not granted)",
		})
	}

	if c.MaxPresentations > parent.MaxPresentations {
		diffs = append(diffs, Diff{
			Field:  "max_presentations",
			Child:  fmt.Sprintf("%d", c.MaxPresentations),
			Parent: fmt.Sprintf("%d", parent.MaxPresentations),
		})
	}

	if c.Window > parent.Window {
		diffs = append(diffs, Diff{
			Field:  "window",
			Child:  c.Window.String(),
			Parent: parent.Window.String(),
		})
	}

	diffs = append(diffs, resourceLimitDiffs(c.ResourceLimits, parent.ResourceLimits)...)

	if len(diffs) > 0 {
		return &Violation{Diffs: diffs}
	}
	return nil
}

func resourceLimitDiffs(child, parent *ResourceLimits) []Diff {
	if parent == nil {
		// No ceiling on the parent side: any child value is a valid reduction.
		return nil
	}
	if child == nil {
		// Parent constrains resources but the child declares none: that is
		// a widening, not a reduction.
		return []Diff{{Field: "resource_limits", Child: "(none)", Parent: "set"}}
	}

	var diffs []Diff
	if child.MaxConcurrentTasks > parent.MaxConcurrentTasks {
		diffs = append(diffs, Diff{
			Field:  "resource_limits.max_concurrent_tasks",
			Child:  fmt.Sprintf("%d", child.MaxConcurrentTasks),
			Parent: fmt.Sprintf("%d", parent.MaxConcurrentTasks),
		})
	}
	if child.MaxTokensPerRequest > parent.MaxTokensPerRequest {
		diffs = append(diffs, Diff{
			Field:  "resource_limits.max_tokens_per_request",
			Child:  fmt.Sprintf("%d", child.MaxTokensPerRequest),
			Parent: fmt.Sprintf("%d", parent.MaxTokensPerRequest),
		})
	}
	if child.MaxWallClockSeconds > parent.MaxWallClockSeconds {
		diffs = append(diffs, Diff{
			Field:  "resource_limits.max_wall_clock_seconds",
			Child:  fmt.Sprintf("%d", child.MaxWallClockSeconds),
			Parent: fmt.Sprintf("%d", parent.MaxWallClockSeconds),
		})
	}
	return diffs
}
