// Package view holds the pure projections displays and staff consoles read.
// Functions never mutate their input slice.
package view

import (
	"sort"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
)

// FilterAll is the sentinel that bypasses a filter dimension.
const FilterAll = "all"

// CurrentlyServing returns the called entry for a department; when several
// entries are in called state, the most recently called wins. department may
// be FilterAll or empty to look across departments.
func CurrentlyServing(entries []models.QueueEntry, department string) (models.QueueEntry, bool) {
	var current models.QueueEntry
	found := false
	for _, entry := range entries {
		if entry.Status != models.StatusCalled {
			continue
		}
		if !matchesDepartment(entry, department) {
			continue
		}
		if !found {
			current = entry
			found = true
			continue
		}
		if laterCall(entry, current) {
			current = entry
		}
	}
	return current, found
}

// NextWaiting returns up to n waiting entries in canonical call order:
// emergency priority first, then ascending creation time.
func NextWaiting(entries []models.QueueEntry, department string, n int) []models.QueueEntry {
	var waiting []models.QueueEntry
	for _, entry := range entries {
		if entry.Status != models.StatusWaiting {
			continue
		}
		if !matchesDepartment(entry, department) {
			continue
		}
		waiting = append(waiting, entry)
	}
	sort.SliceStable(waiting, func(i, j int) bool {
		return CallOrderLess(waiting[i], waiting[j])
	})
	if n > 0 && len(waiting) > n {
		waiting = waiting[:n]
	}
	return waiting
}

// CallOrderLess is the canonical "who is called next" ordering.
func CallOrderLess(a, b models.QueueEntry) bool {
	aEmergency := a.Priority == models.PriorityEmergency
	bEmergency := b.Priority == models.PriorityEmergency
	if aEmergency != bEmergency {
		return aEmergency
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Filter applies department and status predicates; FilterAll (or empty)
// bypasses a dimension.
func Filter(entries []models.QueueEntry, department, status string) []models.QueueEntry {
	var out []models.QueueEntry
	for _, entry := range entries {
		if !matchesDepartment(entry, department) {
			continue
		}
		if status != "" && status != FilterAll && entry.Status != status {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// AccessFilter restricts non-admin staff to their own department when the
// deployment enables the restriction. Admin always sees everything.
func AccessFilter(entries []models.QueueEntry, role, userDepartment string, restrictToOwnDept bool) []models.QueueEntry {
	if role == models.RoleAdmin || !restrictToOwnDept {
		return entries
	}
	var out []models.QueueEntry
	for _, entry := range entries {
		if entry.Department == userDepartment {
			out = append(out, entry)
		}
	}
	return out
}

func matchesDepartment(entry models.QueueEntry, department string) bool {
	if department == "" || department == FilterAll {
		return true
	}
	return entry.Department == department
}

func laterCall(a, b models.QueueEntry) bool {
	if a.CalledAt == nil {
		return false
	}
	if b.CalledAt == nil {
		return true
	}
	return a.CalledAt.After(*b.CalledAt)
}
