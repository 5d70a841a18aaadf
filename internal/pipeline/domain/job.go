package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Status outcome of a conversion
type Status string

const (
	// StatusSuccess the result object was stored
	StatusSuccess Status = "success"
	// StatusFailure the job can never succeed
	StatusFailure Status = "failure"
)

// JobRecord is published once per upload and never changed afterwards
type JobRecord struct {
	JobID         string  `json:"job_id" validate:"required"`
	SourceHandle  string  `json:"source_handle" validate:"required,handle"`
	ResultHandle  *string `json:"result_handle" validate:"omitempty,handle"`
	OwnerIdentity string  `json:"owner_identity" validate:"required"`
	FileName      string  `json:"file_name,omitempty"`
	ContentType   string  `json:"content_type,omitempty"`
	CreatedAt     int64   `json:"created_at"`
}

// NotificationEvent reports the outcome of one job
type NotificationEvent struct {
	EventID       string  `json:"event_id" validate:"required"`
	JobID         string  `json:"job_id"`
	SourceHandle  string  `json:"source_handle" validate:"required,handle"`
	ResultHandle  *string `json:"result_handle" validate:"omitempty,handle"`
	OwnerIdentity string  `json:"owner_identity" validate:"required"`
	Status        Status  `json:"status" validate:"required,oneof=success failure"`
	ErrorDetail   string  `json:"error_detail,omitempty"`
	HappenedAt    int64   `json:"happened_at"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return ValidHandle(fl.Field().String())
	})
	return v
}

// NewJobRecord build the record for a freshly stored source object
func NewJobRecord(sourceHandle, owner, fileName, contentType string, now time.Time) JobRecord {
	return JobRecord{
		JobID:         uuid.NewString(),
		SourceHandle:  sourceHandle,
		ResultHandle:  nil,
		OwnerIdentity: owner,
		FileName:      fileName,
		ContentType:   contentType,
		CreatedAt:     now.Unix(),
	}
}

// Encode JSON body for the queue
func (j JobRecord) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJobRecord parse and validate a job queue body, any defect is ErrPoisonMessage
func DecodeJobRecord(body []byte) (JobRecord, error) {
	var j JobRecord
	if err := json.Unmarshal(body, &j); err != nil {
		return JobRecord{}, NewError(ErrPoisonMessage, "decode job record", err)
	}
	if err := validate.Struct(j); err != nil {
		return JobRecord{}, NewError(ErrPoisonMessage, "validate job record", err)
	}
	return j, nil
}

// NewSuccessEvent event for a job whose result is stored under resultHandle
func NewSuccessEvent(job JobRecord, resultHandle string, now time.Time) NotificationEvent {
	return NotificationEvent{
		EventID:       uuid.NewString(),
		JobID:         job.JobID,
		SourceHandle:  job.SourceHandle,
		ResultHandle:  &resultHandle,
		OwnerIdentity: job.OwnerIdentity,
		Status:        StatusSuccess,
		HappenedAt:    now.Unix(),
	}
}

// NewFailureEvent event for a job that failed permanently
func NewFailureEvent(job JobRecord, detail string, now time.Time) NotificationEvent {
	return NotificationEvent{
		EventID:       uuid.NewString(),
		JobID:         job.JobID,
		SourceHandle:  job.SourceHandle,
		OwnerIdentity: job.OwnerIdentity,
		Status:        StatusFailure,
		ErrorDetail:   detail,
		HappenedAt:    now.Unix(),
	}
}

// Encode JSON body for the queue
func (e NotificationEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeNotificationEvent parse and validate a notification queue body, any defect is ErrPoisonMessage
func DecodeNotificationEvent(body []byte) (NotificationEvent, error) {
	var e NotificationEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return NotificationEvent{}, NewError(ErrPoisonMessage, "decode notification event", err)
	}
	if err := validate.Struct(e); err != nil {
		return NotificationEvent{}, NewError(ErrPoisonMessage, "validate notification event", err)
	}

	switch {
	case e.Status == StatusSuccess && e.ResultHandle == nil:
		return NotificationEvent{}, NewError(ErrPoisonMessage, "validate notification event",
			errors.New("success event without result_handle"))
	case e.Status == StatusFailure && e.ErrorDetail == "":
		return NotificationEvent{}, NewError(ErrPoisonMessage, "validate notification event",
			errors.New("failure event without error_detail"))
	}
	return e, nil
}
