package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionWaitPay  CommissionStatus = "WAIT_PAY"
	CommissionReported CommissionStatus = "REPORTED"
	CommissionApproved CommissionStatus = "APPROVED"
	CommissionOverdue  CommissionStatus = "OVERDUE"

	CommissionStatusUnknown CommissionStatus = "UNKNOWN"
)

func ParseCommissionStatus(s string) CommissionStatus {
	switch CommissionStatus(s) {
	case CommissionWaitPay, CommissionReported, CommissionApproved, CommissionOverdue:
		return CommissionStatus(s)
	}
	return CommissionStatusUnknown
}

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentSBP  PaymentMethod = "sbp"
	PaymentCash PaymentMethod = "cash"
)

// PaymentSnapshot is frozen at commission creation and never rewritten.
type PaymentSnapshot struct {
	Method     PaymentMethod `json:"method"`
	CardLast4  string        `json:"card_last4,omitempty"`
	CardHolder string        `json:"card_holder,omitempty"`
	SBPPhone   string        `json:"sbp_phone,omitempty"`
	SBPBank    string        `json:"sbp_bank,omitempty"`
	Comment    string        `json:"comment,omitempty"`
}

type Commission struct {
	ID             int64            `json:"id"`
	OrderID        int64            `json:"order_id"`
	MasterID       int64            `json:"master_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Rate           decimal.Decimal  `json:"rate"`
	Status         CommissionStatus `json:"status"`
	Deadline       time.Time        `json:"deadline"`
	PaidAmount     decimal.Decimal  `json:"paid_amount"`
	Snapshot       PaymentSnapshot  `json:"payment_snapshot"`
	BlockedApplied bool             `json:"blocked_applied"`
	CreatedAt      time.Time        `json:"created_at"`
}

type RewardStatus string

const (
	RewardAccrued RewardStatus = "ACCRUED"
	RewardPaid    RewardStatus = "PAID"
)

type ReferralReward struct {
	ID               int64
	ReferrerID       int64
	ReferredMasterID int64
	CommissionID     int64
	Level            int
	Percent          decimal.Decimal
	Amount           decimal.Decimal
	Status           RewardStatus
	CreatedAt        time.Time
}

// OverdueBlock is one commission the watchdog has just marked overdue.
type OverdueBlock struct {
	CommissionID int64
	OrderID      int64
	MasterID     int64
	Amount       decimal.Decimal
	Deadline     time.Time
}
