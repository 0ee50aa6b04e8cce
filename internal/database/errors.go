package database

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrVersionConflict     = errors.New("version conflict")
	ErrStocktakeInProgress = errors.New("stock-taking already in progress")
	ErrStocktakeLocked     = errors.New("stock-taking already finished")
	ErrChunkLocked         = errors.New("chunk already locked")
	ErrUnfinishedChunks    = errors.New("found unfinished chunks")
	ErrDeliveryLocked      = errors.New("delivery already processed")
	ErrDeliveryInvalid     = errors.New("delivery contains unassociated items")
)
