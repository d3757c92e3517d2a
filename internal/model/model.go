package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderCreated   OrderStatus = "CREATED"
	OrderSearching OrderStatus = "SEARCHING"
	OrderDeferred  OrderStatus = "DEFERRED"
	OrderAssigned  OrderStatus = "ASSIGNED"
	OrderEnRoute   OrderStatus = "EN_ROUTE"
	OrderWorking   OrderStatus = "WORKING"
	OrderPayment   OrderStatus = "PAYMENT"
	OrderClosed    OrderStatus = "CLOSED"
	OrderCanceled  OrderStatus = "CANCELED"
	OrderGuarantee OrderStatus = "GUARANTEE"

	OrderStatusUnknown OrderStatus = "UNKNOWN"
)

var orderStatuses = []OrderStatus{
	OrderCreated, OrderSearching, OrderDeferred, OrderAssigned, OrderEnRoute,
	OrderWorking, OrderPayment, OrderClosed, OrderCanceled, OrderGuarantee,
}

// ParseOrderStatus maps legacy or unrecognised values to OrderStatusUnknown.
func ParseOrderStatus(s string) OrderStatus {
	for _, st := range orderStatuses {
		if string(st) == s {
			return st
		}
	}
	return OrderStatusUnknown
}

// OccupiedStatuses count against a master's active-order limit.
var OccupiedStatuses = []OrderStatus{OrderAssigned, OrderEnRoute, OrderWorking, OrderPayment}

func (s OrderStatus) Occupied() bool {
	for _, st := range OccupiedStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Assignable reports whether staff may hand the order to a master directly.
func (s OrderStatus) Assignable() bool {
	switch s {
	case OrderSearching, OrderCreated, OrderDeferred, OrderGuarantee:
		return true
	}
	return false
}

// PaymentEligible reports whether a commission can be created for the order.
func (s OrderStatus) PaymentEligible() bool {
	return s == OrderPayment || s == OrderClosed
}

type OrderType string

const (
	OrderTypeNormal    OrderType = "NORMAL"
	OrderTypeGuarantee OrderType = "GUARANTEE"
)

type Order struct {
	ID                int64
	Status            OrderStatus
	Type              OrderType
	CityID            int64
	DistrictID        *int64
	NoDistrict        bool
	Category          string
	AssignedMasterID  *int64
	PreferredMasterID *int64
	GuaranteeSourceID *int64
	TimeslotStart     *time.Time
	TimeslotEnd       *time.Time
	TotalSum          decimal.Decimal
	DistRound         int

	EscalatedLogistAt *time.Time
	LogistNotifiedAt  *time.Time
	EscalatedAdminAt  *time.Time
	AdminNotifiedAt   *time.Time

	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// SearchDistrict returns the district to filter by, or nil for a city-wide search.
func (o Order) SearchDistrict() *int64 {
	if o.NoDistrict {
		return nil
	}
	return o.DistrictID
}

// IsGuarantee is true when either the type flag or the source back-reference says so.
func (o Order) IsGuarantee() bool {
	return o.Type == OrderTypeGuarantee || o.GuaranteeSourceID != nil
}

type Master struct {
	ID                      int64
	CityID                  int64
	FullName                string
	IsVerified              bool
	IsActive                bool
	IsOnShift               bool
	BreakUntil              *time.Time
	IsBlocked               bool
	BlockedReason           string
	BlockedAt               *time.Time
	HasVehicle              bool
	Rating                  float64
	MaxActiveOrdersOverride *int
	ReferralCode            string
	ReferredByMasterID      *int64
}

type Staff struct {
	ID       int64
	Login    string
	Role     string
	IsActive bool
}
