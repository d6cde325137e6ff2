package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuditLogPrepare(t *testing.T) {
	t.Run("stamps zero time", func(t *testing.T) {
		log, err := AuditLog{Action: "create", Entity: "job_card", EntityID: "1"}.prepare()
		require.NoError(t, err)
		require.False(t, log.At.IsZero())
		require.WithinDuration(t, time.Now(), log.At, time.Minute)
	})

	t.Run("keeps explicit time", func(t *testing.T) {
		at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		log, err := AuditLog{Action: "dispatch", Entity: "batch", EntityID: "7", At: at}.prepare()
		require.NoError(t, err)
		require.Equal(t, at, log.At)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := AuditLog{Action: "create"}.prepare()
		require.Error(t, err)
	})
}
