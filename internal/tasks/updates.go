package tasks

import (
	"fmt"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

// ProgressUpdate represents a progress event during a batch.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Queue Phase = iota
	Submit
	Complete
	Manifest
)

func (p Phase) String() string {
	switch p {
	case Queue:
		return "queue"
	case Submit:
		return "submit"
	case Complete:
		return "complete"
	case Manifest:
		return "manifest"
	default:
		return ""
	}
}

func queuedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Queue,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Queued %d plans for optimization...", total),
	}
}

func submitUpdate(step, total int, plan *models.PersistedPlan) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Submit,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Optimizing %s (%d stops)...", step, total, plan.Name(), len(plan.Stops())),
	}
}

func succeededUpdate(step, total int, res PlanResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.PlanName)
	if r := res.Result; r.Complete() {
		msg += fmt.Sprintf(" (%s, %s)", shared.FormatDistance(r.OptimizedRoute.TotalDistance),
			shared.FormatDuration(r.OptimizedRoute.TotalDuration))
	}
	return ProgressUpdate{
		Phase:   Complete,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func failedUpdate(step, total int, res PlanResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.PlanName, res.Error),
		Data:    res,
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Manifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
	}
}
