package store

import "errors"

var (
	ErrEntryNotFound      = errors.New("queue entry not found")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrFlowNotFound       = errors.New("service flow not found")
	ErrInvalidState       = errors.New("invalid entry state")
	ErrNoEntry            = errors.New("no entry available")
	ErrSameDepartment     = errors.New("transfer to same department")
	ErrInactiveDepartment = errors.New("department inactive")
	ErrFlowComplete       = errors.New("service flow complete")
	ErrFlowNotOffered     = errors.New("flow not offered for department")
	ErrTransferDisabled   = errors.New("cross-department transfer disabled")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAccessDenied       = errors.New("access denied")
)
