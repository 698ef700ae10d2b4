package bets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takes-mobile/takes-server/internal/types"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func timedBet(durationHours int) *types.Bet {
	d := durationHours
	return NewBet(&types.BetCreateRequest{
		Question:       "Will BONK flip WIF this week?",
		Options:        []string{"yes", "no"},
		TokenAddresses: []string{"mintA", "mintB"},
		SolAmount:      0.1,
		DurationHours:  &d,
		UserWallet:     "creatorWallet",
		BetType:        types.BetTypeStandard,
	}, t0)
}

func timelessBet() *types.Bet {
	return NewBet(&types.BetCreateRequest{
		Question:       "Will SOL hit $500?",
		Options:        []string{"yes", "no"},
		TokenAddresses: []string{"mintA", "mintB"},
		SolAmount:      0.1,
		UserWallet:     "creatorWallet",
		BetType:        types.BetTypeTimeless,
	}, t0)
}

func participant(sig string, amount float64) types.Participant {
	return types.Participant{
		Wallet:               "bettorWallet",
		OptionIndex:          0,
		Amount:               amount,
		TransactionSignature: sig,
		CreatedAt:            t0,
	}
}

func TestNewBet(t *testing.T) {
	bet := timedBet(24)
	assert.Equal(t, types.BetStatusActive, bet.Status)
	assert.Nil(t, bet.Winner)
	require.NotNil(t, bet.EndTime)
	assert.Equal(t, t0.Add(24*time.Hour), *bet.EndTime)

	timeless := timelessBet()
	assert.Nil(t, timeless.EndTime)
	assert.Nil(t, timeless.DurationHours)
}

func TestIsExpired(t *testing.T) {
	bet := timedBet(24)
	assert.False(t, IsExpired(bet, t0))
	assert.False(t, IsExpired(bet, t0.Add(23*time.Hour)))
	assert.True(t, IsExpired(bet, t0.Add(24*time.Hour)))
	assert.True(t, IsExpired(bet, t0.Add(25*time.Hour)))
}

func TestIsExpiredTimeless(t *testing.T) {
	bet := timelessBet()
	for _, now := range []time.Time{t0, t0.Add(24 * time.Hour), t0.AddDate(100, 0, 0)} {
		assert.False(t, IsExpired(bet, now))
	}
}

func TestAppendParticipant(t *testing.T) {
	bet := timedBet(24)
	require.NoError(t, AppendParticipant(bet, participant("sig1", 0.1), t0.Add(time.Hour)))
	require.NoError(t, AppendParticipant(bet, participant("sig2", 0.25), t0.Add(2*time.Hour)))

	assert.Equal(t, 2, bet.TotalParticipants)
	assert.Equal(t, 0.1+0.25, bet.TotalPool)
}

func TestAppendParticipantRejected(t *testing.T) {
	expired := timedBet(24)
	err := AppendParticipant(expired, participant("sig1", 0.1), t0.Add(25*time.Hour))
	assert.ErrorIs(t, err, ErrBetNotJoinable)
	assert.Empty(t, expired.Participants)

	cancelled := timedBet(24)
	cancelled.Status = types.BetStatusCancelled
	err = AppendParticipant(cancelled, participant("sig1", 0.1), t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrBetNotJoinable)

	badOption := timedBet(24)
	p := participant("sig1", 0.1)
	p.OptionIndex = 2
	err = AppendParticipant(badOption, p, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrBetNotJoinable)
	assert.Empty(t, badOption.Participants)
}

// The same wallet may bet the same option twice: each swap is an independent
// bet, deduped only by transaction signature at the storage layer.
func TestAppendParticipantSameWalletTwice(t *testing.T) {
	bet := timedBet(24)
	require.NoError(t, AppendParticipant(bet, participant("sig1", 0.1), t0.Add(time.Hour)))
	require.NoError(t, AppendParticipant(bet, participant("sig2", 0.1), t0.Add(time.Hour)))
	assert.Equal(t, 2, bet.TotalParticipants)
}

func TestTotalPoolFollowsAppendOrder(t *testing.T) {
	bet := timedBet(24)
	amounts := []float64{0.1, 0.2, 0.3, 0.07, 1.5}
	expected := 0.0
	for i, a := range amounts {
		expected += a
		sig := string(rune('a' + i))
		require.NoError(t, AppendParticipant(bet, participant(sig, a), t0.Add(time.Hour)))
		assert.Equal(t, expected, bet.TotalPool)
	}
}

func TestDrawWinner(t *testing.T) {
	bet := timedBet(24)
	now := t0.Add(25 * time.Hour)

	require.NoError(t, DrawWinner(bet, 1, now))
	require.NotNil(t, bet.Winner)
	assert.Equal(t, 1, *bet.Winner)
	assert.Equal(t, types.BetStatusCompleted, bet.Status)

	// the draw happens at most once, whatever the second input is
	err := DrawWinner(bet, 0, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, 1, *bet.Winner)
}

func TestDrawWinnerBeforeExpiry(t *testing.T) {
	bet := timedBet(24)
	err := DrawWinner(bet, 0, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotYetExpired)
	assert.Nil(t, bet.Winner)
	assert.Equal(t, types.BetStatusActive, bet.Status)
}

func TestDrawWinnerTimeless(t *testing.T) {
	bet := timelessBet()
	for _, now := range []time.Time{t0, t0.AddDate(10, 0, 0)} {
		assert.False(t, CanDrawWinner(bet, now))
		assert.ErrorIs(t, DrawWinner(bet, 0, now), ErrNotYetExpired)
	}
}

func TestDrawWinnerIndexOutOfRange(t *testing.T) {
	bet := timedBet(24)
	now := t0.Add(25 * time.Hour)
	assert.Error(t, DrawWinner(bet, 2, now))
	assert.Error(t, DrawWinner(bet, -1, now))
	assert.Nil(t, bet.Winner)
}

// 24h window end to end: join at T0+1h, blocked at T0+25h, drawn once.
func TestBetWindowScenario(t *testing.T) {
	bet := timedBet(24)

	require.NoError(t, AppendParticipant(bet, participant("sig1", 0.1), t0.Add(time.Hour)))

	err := AppendParticipant(bet, participant("sig2", 0.1), t0.Add(25*time.Hour))
	assert.ErrorIs(t, err, ErrBetNotJoinable)

	require.True(t, CanDrawWinner(bet, t0.Add(25*time.Hour)))
	require.NoError(t, DrawWinner(bet, 0, t0.Add(25*time.Hour)))

	err = DrawWinner(bet, 0, t0.Add(26*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestTransitions(t *testing.T) {
	assert.True(t, IsValidTransition(types.BetStatusActive, types.BetStatusCompleted))
	assert.True(t, IsValidTransition(types.BetStatusActive, types.BetStatusCancelled))
	assert.False(t, IsValidTransition(types.BetStatusCompleted, types.BetStatusActive))
	assert.False(t, IsValidTransition(types.BetStatusCancelled, types.BetStatusCompleted))
}

func TestSOLToLamports(t *testing.T) {
	assert.Equal(t, uint64(1_000_000_000), SOLToLamports(1))
	assert.Equal(t, uint64(100_000_000), SOLToLamports(0.1))
	assert.Equal(t, uint64(0), SOLToLamports(0))
}
