package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"github.com/stretchr/testify/require"
)

func TestCreateOfferGuards(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	s := New()
	orderID := s.AddOrder(model.Order{Status: model.OrderSearching})
	offer := func(masterID int64, round int) model.Offer {
		return model.Offer{OrderID: orderID, MasterID: masterID, Round: round, State: model.OfferSent, SentAt: now, ExpiresAt: now.Add(2 * time.Minute)}
	}

	_, err := s.CreateOffer(ctx, offer(1, 2), model.Notification{})
	require.ErrorIs(t, err, errs.ErrOfferConflict, "round must follow the last one")

	first, err := s.CreateOffer(ctx, offer(1, 1), model.Notification{})
	require.NoError(t, err)

	_, err = s.CreateOffer(ctx, offer(2, 2), model.Notification{})
	require.ErrorIs(t, err, errs.ErrOfferConflict, "round one is still live")

	require.NoError(t, s.RespondOffer(ctx, first.ID, 1, model.OfferDeclined, now))
	second, err := s.CreateOffer(ctx, offer(2, 2), model.Notification{})
	require.NoError(t, err)
	require.Equal(t, 2, s.Order(orderID).DistRound)
	require.Len(t, s.Offers(orderID), 2)
	require.Equal(t, 2, second.Round)
}
