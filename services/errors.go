package services

import "errors"

var (
	ErrNoActiveSponsor    = errors.New("no active sponsor")
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrNotOwner           = errors.New("not the owner of this business")
	ErrNoSubscription     = errors.New("business has no live subscription")
	ErrAlreadySubscribed  = errors.New("business already has an active subscription")
	ErrInvalidRange       = errors.New("invalid date range")
	ErrUnknownCounter     = errors.New("unknown counter")
	ErrMissingWebhookData = errors.New("webhook event is missing data")
)
