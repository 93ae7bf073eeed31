// Package goals decides how task completion propagates to the owning goal.
package goals

import "planner/internal/models"

// ShouldComplete reports whether goal must flip from incomplete to completed
// given its full task set. It never asks for the reverse transition, and a
// goal without tasks is left alone.
func ShouldComplete(goal models.Goal, tasks []models.Task) bool {
	if goal.Completed || len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.Completed {
			return false
		}
	}
	return true
}

// Progress is the share of completed tasks as a whole percentage.
func Progress(total, completed int) int {
	if total <= 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	return completed * 100 / total
}
