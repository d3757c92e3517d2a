package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CandidateQuery selects the masters considered for one order.
type CandidateQuery struct {
	OrderID  int64
	CityID   int64
	District *int64
	SkillID  int64
	// DefaultLimit applies to masters without a personal override.
	DefaultLimit int
	// Since bounds the trailing average order value window.
	Since time.Time
}

// CandidateSnapshot is a master row with the per-order computed attributes.
type CandidateSnapshot struct {
	Master
	ActiveOrders   int
	MaxActive      int
	AvgCheck       decimal.Decimal
	HasSkill       bool
	CoversDistrict bool
	HasOpenOffer   bool
}
