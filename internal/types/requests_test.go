package types

import (
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomAddress(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base58.Encode(raw)
}

func randomSignature(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 64)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base58.Encode(raw)
}

func validCreateRequest(t *testing.T) *BetCreateRequest {
	d := 24
	return &BetCreateRequest{
		Question:       "Will BONK flip WIF this week?",
		Options:        []string{"yes", "no"},
		TokenAddresses: []string{randomAddress(t), randomAddress(t)},
		SolAmount:      0.1,
		DurationHours:  &d,
		UserWallet:     randomAddress(t),
		BetType:        BetTypeStandard,
	}
}

func TestIsValidSolanaAddress(t *testing.T) {
	assert.True(t, IsValidSolanaAddress(randomAddress(t)))
	assert.False(t, IsValidSolanaAddress("not-base58-0OIl"))
	assert.False(t, IsValidSolanaAddress(base58.Encode([]byte("short"))))
	assert.False(t, IsValidSolanaAddress(""))
}

func TestBetCreateRequestIsValid(t *testing.T) {
	require.NoError(t, validCreateRequest(t).IsValid())

	req := validCreateRequest(t)
	req.Question = ""
	assert.Error(t, req.IsValid())

	req = validCreateRequest(t)
	req.Options = []string{"only one"}
	req.TokenAddresses = req.TokenAddresses[:1]
	assert.Error(t, req.IsValid())

	req = validCreateRequest(t)
	req.TokenAddresses = req.TokenAddresses[:1]
	assert.Error(t, req.IsValid())

	req = validCreateRequest(t)
	req.TokenAddresses[0] = "junk"
	assert.Error(t, req.IsValid())

	req = validCreateRequest(t)
	req.SolAmount = 0
	assert.Error(t, req.IsValid())

	req = validCreateRequest(t)
	req.BetType = "mystery"
	assert.Error(t, req.IsValid())
}

func TestBetCreateRequestDuration(t *testing.T) {
	// timed bets require a duration
	req := validCreateRequest(t)
	req.DurationHours = nil
	assert.Error(t, req.IsValid())

	// timeless bets must not carry one
	req = validCreateRequest(t)
	req.BetType = BetTypeTimeless
	assert.Error(t, req.IsValid())

	req = validCreateRequest(t)
	req.BetType = BetTypeTimeless
	req.DurationHours = nil
	assert.NoError(t, req.IsValid())
}

func TestParticipateRequestIsValid(t *testing.T) {
	valid := ParticipateRequest{
		ParticipantWallet:    randomAddress(t),
		OptionIndex:          1,
		Amount:               0.05,
		TransactionSignature: randomSignature(t),
	}
	require.NoError(t, valid.IsValid())

	req := valid
	req.ParticipantWallet = "junk"
	assert.Error(t, req.IsValid())

	req = valid
	req.OptionIndex = -1
	assert.Error(t, req.IsValid())

	req = valid
	req.Amount = 0
	assert.Error(t, req.IsValid())

	req = valid
	req.TransactionSignature = randomAddress(t) // wrong length
	assert.Error(t, req.IsValid())
}
