package model

import (
	"errors"
	"time"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate job id")
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError
}

// CanTransition reports whether a record may move from one status to another.
// Staying in the same non-terminal status is allowed so progress updates
// within a stage do not need to repeat the status.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobQueued:
		return to == JobQueued || to == JobProcessing || to == JobError
	case JobProcessing:
		return to == JobProcessing || to == JobDone || to == JobError
	default:
		return false
	}
}

// ErrorKind names the pipeline stage that failed.
type ErrorKind string

const (
	ErrLoad        ErrorKind = "load"
	ErrPreprocess  ErrorKind = "preprocess"
	ErrInference   ErrorKind = "inference"
	ErrPostprocess ErrorKind = "postprocess"
	ErrSave        ErrorKind = "save"
)

// ErrorDetail is attached to a job once it reaches JobError.
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Trace   string    `json:"trace,omitempty"`
}

// Job represents one restoration request in the job store.
//
// - UploadName is the file name of the upload artifact in the uploads dir.
// - ResultLocator is a root-relative path, set only when Status is JobDone.
// - Error is set only when Status is JobError.
type Job struct {
	ID            string       `json:"id"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Status        JobStatus    `json:"status"`
	Progress      int          `json:"progress"`
	Message       string       `json:"message"`
	UploadName    string       `json:"uploadName"`
	ResultLocator string       `json:"resultLocator,omitempty"`
	Error         *ErrorDetail `json:"error,omitempty"`
}

// Clone returns a copy that shares no memory with j.
func (j Job) Clone() Job {
	out := j
	if j.Error != nil {
		detail := *j.Error
		out.Error = &detail
	}
	return out
}

// JobPatch is used for partial updates.
type JobPatch struct {
	Status        *JobStatus
	Progress      *int
	Message       *string
	ResultLocator *string
	Error         *ErrorDetail
}

// Stage builds the patch for entering a pipeline stage.
func Stage(status JobStatus, progress int, message string) JobPatch {
	return JobPatch{Status: &status, Progress: &progress, Message: &message}
}

// Done builds the terminal success patch.
func Done(locator string) JobPatch {
	p := Stage(JobDone, 100, "done")
	p.ResultLocator = &locator
	return p
}

// Failed builds the terminal failure patch. The current progress is kept.
func Failed(detail ErrorDetail) JobPatch {
	status := JobError
	message := detail.Message
	return JobPatch{Status: &status, Message: &message, Error: &detail}
}

// Apply merges p into j under the lifecycle rules and reports whether j
// changed. Writes to terminal jobs and invalid transitions are rejected;
// progress never moves backwards.
func (p JobPatch) Apply(j *Job, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	next := j.Status
	if p.Status != nil {
		next = *p.Status
	}
	if !CanTransition(j.Status, next) {
		return false
	}
	j.Status = next
	if p.Progress != nil && *p.Progress > j.Progress {
		j.Progress = min(*p.Progress, 100)
	}
	if p.Message != nil {
		j.Message = *p.Message
	}
	if next == JobDone && p.ResultLocator != nil {
		j.ResultLocator = *p.ResultLocator
	}
	if next == JobError && p.Error != nil {
		detail := *p.Error
		j.Error = &detail
	}
	j.UpdatedAt = now
	return true
}
