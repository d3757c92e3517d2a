package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatuses(t *testing.T) {
	assert.Equal(t, OrderSearching, ParseOrderStatus("SEARCHING"))
	assert.Equal(t, OrderStatusUnknown, ParseOrderStatus("PAUSED"))
	assert.Equal(t, OrderStatusUnknown, ParseOrderStatus(""))

	assert.Equal(t, OfferViewed, ParseOfferState("VIEWED"))
	assert.Equal(t, OfferStateUnknown, ParseOfferState("sent"))

	assert.Equal(t, CommissionOverdue, ParseCommissionStatus("OVERDUE"))
	assert.Equal(t, CommissionStatusUnknown, ParseCommissionStatus("PAID_LATE"))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, OrderPayment.Occupied())
	assert.False(t, OrderClosed.Occupied())
	assert.True(t, OrderDeferred.Assignable())
	assert.False(t, OrderAssigned.Assignable())
	assert.True(t, OrderClosed.PaymentEligible())
	assert.False(t, OrderWorking.PaymentEligible())
}

func TestOfferLive(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	offer := Offer{State: OfferSent, ExpiresAt: now.Add(time.Second)}
	assert.True(t, offer.Live(now))
	assert.False(t, offer.Live(now.Add(time.Second)))

	offer.State = OfferDeclined
	assert.False(t, offer.Live(now))
}

func TestOrderDistrictAndGuarantee(t *testing.T) {
	d := int64(4)
	o := Order{DistrictID: &d}
	assert.Equal(t, &d, o.SearchDistrict())
	o.NoDistrict = true
	assert.Nil(t, o.SearchDistrict())

	assert.False(t, o.IsGuarantee())
	src := int64(1)
	o.GuaranteeSourceID = &src
	assert.True(t, o.IsGuarantee())
	assert.True(t, Order{Type: OrderTypeGuarantee}.IsGuarantee())
}

func TestHistoryContextRoundTrip(t *testing.T) {
	target := time.Date(2025, 5, 1, 7, 0, 0, 0, time.UTC)
	contexts := []HistoryContext{
		AssignContext{MasterID: 1, StaffID: 2, Action: "manual_assign"},
		OfferAcceptContext{MasterID: 3, OfferID: 4, Round: 2, Finalized: true},
		WakeContext{Timezone: "Europe/Moscow", Target: target},
	}

	for _, c := range contexts {
		t.Run(c.Kind(), func(t *testing.T) {
			raw, err := EncodeContext(c)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"kind":"`+c.Kind()+`"`)

			decoded, err := DecodeContext(raw)
			require.NoError(t, err)
			assert.Equal(t, c, decoded)
		})
	}
}

func TestDecodeContextUnknownKind(t *testing.T) {
	c, err := DecodeContext([]byte(`{"kind":"legacy","note":"x"}`))
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = DecodeContext(nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = DecodeContext([]byte(`{`))
	require.Error(t, err)
}
