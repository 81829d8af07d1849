// pattern: Imperative Shell

package enrich

import (
	"context"

	"wtctl/internal/agent"
	"wtctl/internal/worktree"
)

// RunningPlaceholder stands in for a session id when an agent process is
// running but has no recent session file.
const RunningPlaceholder = "(running)"

// MarkerReader is the part of the provision marker store enrichment needs.
type MarkerReader interface {
	IsProvisioned(worktreePath string) bool
	IsProvisionedByContext(worktreePath, name string) bool
}

// ProvisionStatus sets IsProvisioned and IsProvisionedByCurrentContext from
// each worktree's marker.
type ProvisionStatus struct {
	Markers MarkerReader
	// Current returns the active context name, or "" when there is none.
	Current func() string
}

func (ProvisionStatus) Name() string { return "provision-status" }

func (e ProvisionStatus) Enrich(_ context.Context, list []worktree.Worktree) ([]worktree.Worktree, error) {
	current := ""
	if e.Current != nil {
		current = e.Current()
	}
	for i := range list {
		provisioned := e.Markers.IsProvisioned(list[i].Path)
		list[i].IsProvisioned = provisioned
		list[i].IsProvisionedByCurrentContext = provisioned && current != "" &&
			e.Markers.IsProvisionedByContext(list[i].Path, current)
	}
	return list, nil
}

// AgentStatus sets ActiveAgentSessionIDs from agent detection.
type AgentStatus struct {
	Detection agent.Detection
}

func (AgentStatus) Name() string { return "agent-status" }

func (e AgentStatus) Enrich(ctx context.Context, list []worktree.Worktree) ([]worktree.Worktree, error) {
	active := e.Detection.ActiveDirs(ctx)
	for i := range list {
		running := false
		for _, dir := range active {
			if worktree.SamePath(dir, list[i].Path) {
				running = true
				break
			}
		}
		ids := e.Detection.SessionIDs(list[i].Path)
		switch {
		case len(ids) > 0:
			list[i].ActiveAgentSessionIDs = ids
		case running:
			list[i].ActiveAgentSessionIDs = []string{RunningPlaceholder}
		default:
			list[i].ActiveAgentSessionIDs = nil
		}
	}
	return list, nil
}
