package reporterr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DeadlineBecomesTimeout(t *testing.T) {
	err := New(KindConnection, "monitoring", "history.get", fmt.Errorf("post: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, err.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := New(KindSplice, "splice", "template missing", nil)
	wrapped := fmt.Errorf("job: %w", inner)

	assert.Equal(t, KindSplice, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindSplice))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestIsWarning(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindEmptyData, true},
		{KindNoData, true},
		{KindCleanup, true},
		{KindItemNotFound, true},
		{KindConnection, false},
		{KindSplice, false},
		{KindCommand, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, IsWarning(New(tt.kind, "", "x", nil)))
		})
	}
}

func TestReason_HidesCause(t *testing.T) {
	err := Connection("remote host", "authentication failed", errors.New("ssh: handshake failed: unable to authenticate"))
	assert.Equal(t, "could not connect to remote host: authentication failed", Reason(err))
	assert.Equal(t, "", Reason(nil))
}
