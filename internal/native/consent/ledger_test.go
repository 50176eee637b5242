package consent

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/calendar"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "consent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_StatusDefaultsToNotDetermined(t *testing.T) {
	l := openTestLedger(t)

	status, err := l.Status(context.Background(), "jane@icloud.com")
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusNotDetermined, status)
}

func TestLedger_RecordAndReset(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	const account = "jane@icloud.com"

	require.NoError(t, l.Record(ctx, account, calendar.StatusDenied))
	require.NoError(t, l.Record(ctx, account, calendar.StatusFullAccess))

	status, err := l.Status(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusFullAccess, status)

	grants, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, account, grants[0].Account)
	assert.False(t, grants[0].DecidedAt.IsZero())

	n, err := l.History(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, l.Reset(ctx, account))
	status, err = l.Status(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusNotDetermined, status)
}

func TestLedger_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consent.db")
	ctx := context.Background()

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, "a", calendar.StatusFullAccess))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	status, err := l.Status(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusFullAccess, status)
}

func TestAskYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := askYesNo(strings.NewReader(tt.input), &out, "Allow?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Allow? [y/N]: ", out.String())
		})
	}
}
