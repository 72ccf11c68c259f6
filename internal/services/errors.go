package services

import "errors"

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidCreditType        = errors.New("invalid credit type")
	ErrInvalidUPI               = errors.New("upi id is required")
	ErrInsufficientCredits      = errors.New("insufficient credits")
	ErrInsufficientEarnings     = errors.New("insufficient earnings")
	ErrUnknownPackage           = errors.New("unknown credit package")
	ErrPhoneRequired            = errors.New("customer phone is required for checkout")
	ErrOrderNotFound            = errors.New("order not found")
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrNotHost                  = errors.New("only the host can manage this tournament")
	ErrHostCannotJoin           = errors.New("host cannot join their own tournament")
	ErrInvalidTransition        = errors.New("invalid tournament status transition")
	ErrTournamentClosed         = errors.New("tournament is not accepting players")
	ErrTournamentFull           = errors.New("tournament is full")
	ErrAlreadyJoined            = errors.New("already joined this tournament")
	ErrNotWinner                = errors.New("winner is not a participant")
	ErrInvalidPrizeDistribution = errors.New("invalid prize distribution")
	ErrInvalidTournament        = errors.New("invalid tournament")
)
