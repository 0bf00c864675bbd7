package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	t.Run("creates pending job", func(t *testing.T) {
		job, err := NewJob([]string{"a.com", "b.com"})
		require.NoError(t, err)
		assert.NotEqual(t, job.ID.String(), "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, JobStatusPending, job.Status)
		assert.Equal(t, []string{"a.com", "b.com"}, job.TaskKeys)
		assert.Nil(t, job.StartedAt)
		assert.Nil(t, job.CompletedAt)
	})

	t.Run("rejects empty key set", func(t *testing.T) {
		_, err := NewJob(nil)
		assert.ErrorIs(t, err, ErrNoTaskKeys)
	})
}

func TestJobStatusRank(t *testing.T) {
	// The monotonic guard depends on this ordering.
	assert.Less(t, JobStatusPending.Rank(), JobStatusProcessing.Rank())
	assert.Less(t, JobStatusProcessing.Rank(), JobStatusAwaitingApproval.Rank())
	assert.Less(t, JobStatusAwaitingApproval.Rank(), JobStatusCompleted.Rank())
	assert.Equal(t, -1, JobStatus("bogus").Rank())

	assert.True(t, IsValidJobStatus(JobStatusPending))
	assert.False(t, IsValidJobStatus(JobStatus("bogus")))
}

func TestNormalizeDomains(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{
			name: "lowercases and trims",
			raw:  []string{"  Example.COM  "},
			want: []string{"example.com"},
		},
		{
			name: "strips scheme and path",
			raw:  []string{"https://example.com/about", "http://other.org"},
			want: []string{"example.com", "other.org"},
		},
		{
			name: "splits commas and whitespace",
			raw:  []string{"a.com,b.com c.com\td.com\ne.com"},
			want: []string{"a.com", "b.com", "c.com", "d.com", "e.com"},
		},
		{
			name: "dedupes preserving first-seen order",
			raw:  []string{"b.com", "a.com", "B.com", "https://a.com/x"},
			want: []string{"b.com", "a.com"},
		},
		{
			name: "drops empty entries",
			raw:  []string{"", " , ", "://", "a.com"},
			want: []string{"a.com"},
		},
		{
			name: "everything invalid",
			raw:  []string{"", "  "},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomains(tt.raw))
		})
	}
}
