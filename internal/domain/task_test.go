package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task, err := NewTask("example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", task.Key)
	assert.Equal(t, TaskStatePending, task.State)
	assert.False(t, task.Terminal())

	_, err = NewTask("")
	assert.ErrorIs(t, err, ErrEmptyTaskKey)
}

func TestTaskTerminal(t *testing.T) {
	task := &Task{State: TaskStateDone}
	assert.True(t, task.Terminal())

	task.State = TaskStateFailed
	assert.True(t, task.Terminal())

	task.State = TaskStateClaimed
	assert.False(t, task.Terminal())
}

func TestTruncateErrorMessage(t *testing.T) {
	short := "connection refused"
	assert.Equal(t, short, TruncateErrorMessage(short))

	long := strings.Repeat("x", MaxErrorMessageLength+100)
	truncated := TruncateErrorMessage(long)
	assert.Len(t, truncated, MaxErrorMessageLength)
}

func TestIsValidTaskState(t *testing.T) {
	for _, state := range []TaskState{TaskStatePending, TaskStateClaimed, TaskStateDone, TaskStateFailed} {
		assert.True(t, IsValidTaskState(state))
	}
	assert.False(t, IsValidTaskState(TaskState("processing")))
}
