package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/dispatch/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingStore struct {
	saved []model.Notification
	err   error
}

func (s *recordingStore) EnqueueNotification(ctx context.Context, n model.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, n)
	return nil
}

func TestEnqueueFillsKeyAndTime(t *testing.T) {
	store := &recordingStore{}
	o := New(store, zaptest.NewLogger(t).Sugar())

	n := ToChannel(model.ChannelAdmin, model.NotifyEscalationAdmin, map[string]any{"order_id": 1})
	n.Key = uuid.Nil
	require.NoError(t, o.Enqueue(context.Background(), n))

	require.Len(t, store.saved, 1)
	require.NotEqual(t, uuid.Nil, store.saved[0].Key)
	require.False(t, store.saved[0].CreatedAt.IsZero())
	require.Nil(t, store.saved[0].MasterID)
}

func TestBestEffortSwallowsFailure(t *testing.T) {
	store := &recordingStore{err: errors.New("outbox down")}
	o := New(store, zaptest.NewLogger(t).Sugar())

	ok := o.BestEffort(context.Background(), ToMaster(5, model.NotifyMasterBlocked, nil))
	require.False(t, ok)
}
