package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	srcHandle = "65f1c0ffee0000000000abcd"
	resHandle = "65f1c0ffee0000000000dcba"
)

func TestJobRecord_RoundTrip(t *testing.T) {
	job := NewJobRecord(srcHandle, "alice", "clip.mp4", "video/mp4", time.Unix(1700000000, 0))

	body, err := job.Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Contains(t, raw, "result_handle")
	assert.Nil(t, raw["result_handle"])
	assert.Equal(t, srcHandle, raw["source_handle"])
	assert.Equal(t, "alice", raw["owner_identity"])

	got, err := DecodeJobRecord(body)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestDecodeJobRecord_Poison(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `abc`},
		{"empty object", `{}`},
		{"missing owner", `{"job_id":"j","source_handle":"` + srcHandle + `"}`},
		{"bad handle", `{"job_id":"j","source_handle":"nope","owner_identity":"alice"}`},
		{"upper case handle", `{"job_id":"j","source_handle":"65F1C0FFEE0000000000ABCD","owner_identity":"alice"}`},
		{"bad result handle", `{"job_id":"j","source_handle":"` + srcHandle + `","result_handle":"x","owner_identity":"alice"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobRecord([]byte(tt.body))
			assert.ErrorIs(t, err, ErrPoisonMessage)
		})
	}
}

func TestNotificationEvent_Decode(t *testing.T) {
	job := NewJobRecord(srcHandle, "alice", "", "", time.Now())

	ok := NewSuccessEvent(job, resHandle, time.Now())
	body, err := ok.Encode()
	require.NoError(t, err)
	got, err := DecodeNotificationEvent(body)
	require.NoError(t, err)
	assert.Equal(t, ok, got)
	assert.Equal(t, job.JobID, got.JobID)

	failed := NewFailureEvent(job, "unsupported codec", time.Now())
	body, err = failed.Encode()
	require.NoError(t, err)
	got, err = DecodeNotificationEvent(body)
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, got.Status)
	assert.Nil(t, got.ResultHandle)

	assert.NotEqual(t, ok.EventID, failed.EventID)
}

func TestDecodeNotificationEvent_Poison(t *testing.T) {
	base := `"event_id":"e","source_handle":"` + srcHandle + `","owner_identity":"alice"`
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"unknown status", `{` + base + `,"status":"done"}`},
		{"success without result", `{` + base + `,"status":"success"}`},
		{"failure without detail", `{` + base + `,"status":"failure"}`},
		{"missing event id", `{"source_handle":"` + srcHandle + `","owner_identity":"alice","status":"failure","error_detail":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNotificationEvent([]byte(tt.body))
			assert.ErrorIs(t, err, ErrPoisonMessage)
		})
	}
}

func TestValidHandle(t *testing.T) {
	assert.True(t, ValidHandle(srcHandle))
	assert.False(t, ValidHandle(""))
	assert.False(t, ValidHandle("abc"))
	assert.False(t, ValidHandle(srcHandle+"0"))
}

func TestPipelineError(t *testing.T) {
	cause := errors.New("broker down")
	err := NewError(ErrEnqueue, "publish job", cause)

	assert.ErrorIs(t, err, ErrEnqueue)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, ErrEnqueue, KindOf(err))
	assert.Equal(t, ErrInternal, KindOf(cause))
	assert.EqualError(t, err, "publish job: enqueue error: broker down")

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "publish job", pe.Op)
}

func TestTransformError(t *testing.T) {
	cause := errors.New("exit status 1")

	perm := Permanent(cause)
	assert.ErrorIs(t, perm, ErrTransform)
	assert.ErrorIs(t, perm, cause)
	assert.False(t, IsTransient(perm))

	tr := Transient(cause)
	assert.True(t, IsTransient(tr))
	assert.True(t, IsTransient(NewError(ErrTransform, "convert", tr)))
	assert.False(t, IsTransient(cause))
}
