package repository

import "errors"

var (
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrStepNotFound         = errors.New("step not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrDailyLimitReached    = errors.New("account daily limit reached")
	ErrLeadNotFound         = errors.New("lead not found")
	ErrCampaignLeadNotFound = errors.New("campaign lead not found")
	ErrTerminalState        = errors.New("campaign lead is in a terminal state")
	ErrConcurrentUpdate     = errors.New("concurrent update detected")
)
