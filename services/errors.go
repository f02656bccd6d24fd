package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

// Business-rule errors are terminal for the call that hit them — retrying would
// not change the outcome. ErrStorageUnavailable is the one transient, retryable
// error; a failed call never leaves partial state behind.
var (
	ErrValidation             = errors.New("loyalty: validation failed")
	ErrInsufficientBalance    = errors.New("loyalty: insufficient balance")
	ErrInvalidTransactionType = errors.New("loyalty: invalid transaction type")
	ErrUserNotFound           = errors.New("loyalty: user not found")
	ErrRewardUnavailable      = errors.New("loyalty: reward unavailable")
	ErrDuplicateReferral      = errors.New("loyalty: user already referred")
	ErrSelfReferral           = errors.New("loyalty: self referral")
	ErrInvalidReferralState   = errors.New("loyalty: invalid referral state")
	ErrInvalidRedemptionState = errors.New("loyalty: invalid redemption state")
	ErrStorageUnavailable     = errors.New("loyalty: storage unavailable")
)

// storageErr translates driver-level connection and timeout failures into the
// retryable ErrStorageUnavailable sentinel. Business sentinels and everything
// else pass through unchanged.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
