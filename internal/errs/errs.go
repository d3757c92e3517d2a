package errs

import "errors"

var ErrOrderNotFound = errors.New("order not found")
var ErrMasterNotFound = errors.New("master not found")
var ErrOfferNotFound = errors.New("offer not found")
var ErrStaffNotFound = errors.New("staff not found")
var ErrInvalidToken = errors.New("invalid token")

// ErrOrderTaken means the conditional order update matched zero rows.
var ErrOrderTaken = errors.New("order already taken")
var ErrOfferNotActive = errors.New("offer is no longer active")
var ErrOfferConflict = errors.New("offer for this round already exists")

var ErrUnmappedCategory = errors.New("category has no skill mapping")
var ErrBadSetting = errors.New("bad setting value")

var ErrOrderNotCompleted = errors.New("order is not in a payment-eligible status")
var ErrNoAssignedMaster = errors.New("order has no assigned master")
