package service

import "github.com/practicehub/be-workflow-emails/internal/repository"

// DetectStageCompletion reports whether a workflow stage is fully complete
// for a task: every checklist item has a progress entry with completed=true.
//
// A stage with no checklist items is vacuously complete. Pure and
// deterministic; it may return true repeatedly for the same stage, so callers
// decide when a transition actually fires.
func DetectStageCompletion(progress repository.StageProgress, stageID string, items []repository.ChecklistItem) bool {
	if len(items) == 0 {
		return true
	}

	entry, ok := progress[stageID]
	if !ok {
		return false
	}

	for _, item := range items {
		itemProgress, ok := entry.ChecklistItems[item.ID]
		if !ok || !itemProgress.Completed {
			return false
		}
	}
	return true
}
