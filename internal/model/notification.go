package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelLogist = "logist"
	ChannelAdmin  = "admin"
)

const (
	NotifyNewOffer          = "new_offer"
	NotifyEscalationLogist  = "escalation_logist"
	NotifyEscalationAdmin   = "escalation_admin"
	NotifyCommissionOverdue = "commission_overdue"
	NotifyMasterBlocked     = "master_blocked"
	NotifyOrderDeferred     = "order_deferred"
)

// Notification is an outbox row. Exactly one of MasterID and Channel is set.
type Notification struct {
	Key       uuid.UUID
	MasterID  *int64
	Channel   string
	Event     string
	Payload   map[string]any
	CreatedAt time.Time
}
