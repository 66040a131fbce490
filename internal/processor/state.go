package processor

import (
	"github.com/DevByZero/flowlens-api/internal/domain"
)

// derivePipelineState collapses the four independent pipeline status fields
// into the single state pushed to clients. Checks run strictly from most to
// least final: a merged PR stays merged even if a stale build failure is
// still recorded on the row.
func derivePipelineState(run *domain.PipelineRun) domain.EventState {
	switch {
	case run.StatusMerge == "merged":
		return domain.StateMerged
	case run.StatusMerge == "closed":
		return domain.StateClosed
	case run.StatusMerge == "failed" || run.StatusMerge == "mergeFailed":
		return domain.StateMergeFailed
	case run.StatusApproval == "approved":
		return domain.StateApproved
	case run.StatusApproval == "rejected" || run.StatusApproval == "changes_requested":
		return domain.StateRejected
	case run.StatusBuild == "success" || run.StatusBuild == "buildPassed":
		return domain.StateBuildPassed
	case run.StatusBuild == "failure" || run.StatusBuild == "buildFailed":
		return domain.StateBuildFailed
	// "pending" is the ingestion default for every status field and
	// carries no signal, so it never derives building on its own.
	case run.StatusBuild == "building" || run.StatusBuild == "running":
		return domain.StateBuilding
	case run.StatusPR == "opened" || run.StatusPR == "created":
		return domain.StateOpened
	default:
		return domain.StateUpdated
	}
}

// workflowStates are history entry values that map directly onto an
// EventState. Lifecycle states (opened, merged, closed, draft) come from
// the row flags instead, which are authoritative for them.
var workflowStates = map[string]domain.EventState{
	"building":    domain.StateBuilding,
	"buildPassed": domain.StateBuildPassed,
	"buildFailed": domain.StateBuildFailed,
	"approved":    domain.StateApproved,
	"rejected":    domain.StateRejected,
}

// derivePullRequestState falls back to the PR row itself when no pipeline
// row exists yet: the last recorded history transition wins when it is a
// known workflow state, otherwise the row flags decide.
func derivePullRequestState(pr *domain.PullRequest) domain.EventState {
	if n := len(pr.History); n > 0 {
		if state, ok := workflowStates[pr.History[n-1].State]; ok {
			return state
		}
	}

	switch {
	case pr.Merged:
		return domain.StateMerged
	case pr.State == "closed":
		return domain.StateClosed
	case pr.IsDraft:
		return domain.StateDraft
	default:
		return domain.StateOpened
	}
}
