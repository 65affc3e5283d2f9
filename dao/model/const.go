package model

import "fmt"

// Role is a user's role in the data commons. The set is closed.
type Role string

const (
	RoleAdmin          Role = "cidc-admin"
	RoleCIDCBiofxUser  Role = "cidc-biofx-user"
	RoleCIMACBiofxUser Role = "cimac-biofx-user"
	RoleCIMACUser      Role = "cimac-user"
	RoleDeveloper      Role = "developer"
	RoleDevops         Role = "devops"
	RoleNCIBiobankUser Role = "nci-biobank-user"
	RoleNetworkViewer  Role = "network-viewer"
)

// Roles lists every valid role.
var Roles = []Role{
	RoleAdmin,
	RoleCIDCBiofxUser,
	RoleCIMACBiofxUser,
	RoleCIMACUser,
	RoleDeveloper,
	RoleDevops,
	RoleNCIBiobankUser,
	RoleNetworkViewer,
}

// ParseRole returns the Role named by s.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// JobStatus is the lifecycle state of an upload job.
type JobStatus string

const (
	// JobStarted is set when the job is created.
	JobStarted JobStatus = "started"
	// Set by the client once it has tried to upload every object.
	JobUploadCompleted JobStatus = "upload-completed"
	JobUploadFailed    JobStatus = "upload-failed"
	// Set by the merge process after the upload.
	JobMergeCompleted JobStatus = "merge-completed"
	JobMergeFailed    JobStatus = "merge-failed"
)

var jobStatuses = []JobStatus{
	JobStarted,
	JobUploadCompleted,
	JobUploadFailed,
	JobMergeCompleted,
	JobMergeFailed,
}

// ParseJobStatus returns the JobStatus named by s.
func ParseJobStatus(s string) (JobStatus, error) {
	for _, st := range jobStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown upload job status %q", s)
}

// IsUploadState reports whether s is one of the client-reported upload results.
func (s JobStatus) IsUploadState() bool {
	return s == JobUploadCompleted || s == JobUploadFailed
}

// IsMergeState reports whether s is one of the merge results.
func (s JobStatus) IsMergeState() bool {
	return s == JobMergeCompleted || s == JobMergeFailed
}

// IsTerminal reports whether no further transitions leave s.
// upload-completed still moves on to a merge state.
func (s JobStatus) IsTerminal() bool {
	return s.IsMergeState() || s == JobUploadFailed
}

// CanTransition reports whether a job in status s may be moved to target.
// Statuses only move forward: started -> upload-* -> merge-*. Setting the
// current status again is allowed.
func (s JobStatus) CanTransition(target JobStatus) bool {
	if s == target {
		return true
	}
	switch {
	case target == JobStarted:
		return false
	case s.IsMergeState():
		return false
	case s.IsUploadState():
		return target.IsMergeState()
	case s == JobStarted:
		return target.IsUploadState()
	}
	return false
}
