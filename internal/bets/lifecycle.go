package bets

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/takes-mobile/takes-server/internal/types"
)

var (
	ErrBetNotJoinable  = errors.New("bet is not joinable")
	ErrAlreadyResolved = errors.New("bet winner already drawn")
	ErrNotYetExpired   = errors.New("bet has not expired yet")
)

// LamportsPerSOL converts decimal SOL amounts to lamports. Lifecycle
// predicates always operate on decimal SOL; the conversion belongs to the
// swap execution boundary.
const LamportsPerSOL = 1_000_000_000

func SOLToLamports(sol float64) uint64 {
	return uint64(math.Round(sol * LamportsPerSOL))
}

// ValidBetTransitions lists legal status transitions: from -> []to.
var ValidBetTransitions = map[types.BetStatus][]types.BetStatus{
	types.BetStatusActive:    {types.BetStatusCompleted, types.BetStatusCancelled},
	types.BetStatusCompleted: {},
	types.BetStatusCancelled: {},
}

func IsValidTransition(from, to types.BetStatus) bool {
	for _, s := range ValidBetTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsExpired reports whether the betting window has closed. Timeless bets
// never expire, whatever now is.
func IsExpired(bet *types.Bet, now time.Time) bool {
	if bet.BetType == types.BetTypeTimeless || bet.EndTime == nil {
		return false
	}
	return !now.Before(*bet.EndTime)
}

func CanParticipate(bet *types.Bet, now time.Time) bool {
	return bet.Status == types.BetStatusActive && !IsExpired(bet, now)
}

// AppendParticipant appends p and recomputes the totals from the full
// participant list. Totals are never incremented in place, so a re-derived
// record always agrees with its participant rows.
func AppendParticipant(bet *types.Bet, p types.Participant, now time.Time) error {
	if !CanParticipate(bet, now) {
		return ErrBetNotJoinable
	}
	if p.OptionIndex < 0 || p.OptionIndex >= len(bet.Options) {
		return fmt.Errorf("option index %d out of range: %w", p.OptionIndex, ErrBetNotJoinable)
	}
	bet.Participants = append(bet.Participants, p)
	RecomputeTotals(bet)
	bet.UpdatedAt = now
	return nil
}

// RecomputeTotals derives TotalParticipants and TotalPool from the
// participant list. Summation follows append order.
func RecomputeTotals(bet *types.Bet) {
	bet.TotalParticipants = len(bet.Participants)
	total := 0.0
	for _, p := range bet.Participants {
		total += p.Amount
	}
	bet.TotalPool = total
}

func CanDrawWinner(bet *types.Bet, now time.Time) bool {
	return IsExpired(bet, now) && bet.Winner == nil
}

// DrawWinner resolves the bet exactly once. A second call fails with
// ErrAlreadyResolved whatever the input; a call before expiry fails with
// ErrNotYetExpired. A timeless bet never satisfies the expiry rule, so it
// can never be drawn here.
func DrawWinner(bet *types.Bet, winnerIndex int, now time.Time) error {
	if bet.Winner != nil {
		return ErrAlreadyResolved
	}
	if !IsExpired(bet, now) {
		return ErrNotYetExpired
	}
	if winnerIndex < 0 || winnerIndex >= len(bet.Options) {
		return fmt.Errorf("winner index %d out of range", winnerIndex)
	}
	if !IsValidTransition(bet.Status, types.BetStatusCompleted) {
		return fmt.Errorf("cannot complete bet in status %s", bet.Status)
	}
	idx := winnerIndex
	bet.Winner = &idx
	bet.Status = types.BetStatusCompleted
	bet.UpdatedAt = now
	return nil
}

// NewBet builds an active bet from a validated create request.
func NewBet(req *types.BetCreateRequest, now time.Time) *types.Bet {
	bet := &types.Bet{
		ID:             uuid.New(),
		Question:       req.Question,
		Options:        req.Options,
		TokenAddresses: req.TokenAddresses,
		SolAmount:      req.SolAmount,
		DurationHours:  req.DurationHours,
		UserWallet:     req.UserWallet,
		CreatedAt:      now,
		UpdatedAt:      now,
		Status:         types.BetStatusActive,
		BetType:        req.BetType,
	}
	if req.DurationHours != nil {
		end := now.Add(time.Duration(*req.DurationHours) * time.Hour)
		bet.EndTime = &end
	}
	return bet
}
