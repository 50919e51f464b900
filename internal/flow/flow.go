// Package flow computes routing for multi-department service flows.
package flow

import (
	"errors"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
)

// EntryPoint is the department from which any flow may be started even when
// it is not listed as a stop.
const EntryPoint = "Reception"

var ErrComplete = errors.New("flow complete")

// NextDepartment returns the destination for an entry currently owned by
// current. When current is not a listed stop, the first stop that differs
// from current is chosen. When current is the last stop the flow is complete.
func NextDepartment(f models.ServiceFlow, current string) (string, error) {
	idx := -1
	for i, dept := range f.Departments {
		if dept == current {
			idx = i
			break
		}
	}
	if idx == -1 {
		for _, dept := range f.Departments {
			if dept != current {
				return dept, nil
			}
		}
		return "", ErrComplete
	}
	if idx == len(f.Departments)-1 {
		return "", ErrComplete
	}
	return f.Departments[idx+1], nil
}

// Offered reports whether a flow may be started from the given department:
// the department must be a listed stop, or the designated entry point.
func Offered(f models.ServiceFlow, department string) bool {
	if !f.IsActive {
		return false
	}
	if department == EntryPoint {
		return true
	}
	for _, dept := range f.Departments {
		if dept == department {
			return true
		}
	}
	return false
}

// OfferedFlows filters flows down to the ones a department may use.
func OfferedFlows(flows []models.ServiceFlow, department string) []models.ServiceFlow {
	var offered []models.ServiceFlow
	for _, f := range flows {
		if Offered(f, department) {
			offered = append(offered, f)
		}
	}
	return offered
}
