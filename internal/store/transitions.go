package store

import "github.com/shamadu25/rave-queue-sub001/internal/models"

var transitionMap = map[string][]string{
	"call":     {models.StatusWaiting},
	"serve":    {models.StatusCalled},
	"complete": {models.StatusServed},
	"skip":     {models.StatusWaiting, models.StatusCalled},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// StatusAfter maps an action to the status it produces.
func StatusAfter(action string) (string, bool) {
	switch action {
	case "call":
		return models.StatusCalled, true
	case "serve":
		return models.StatusServed, true
	case "complete":
		return models.StatusCompleted, true
	case "skip":
		return models.StatusSkipped, true
	default:
		return "", false
	}
}
