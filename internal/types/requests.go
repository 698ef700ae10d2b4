package types

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	solanaAddressLen   = 32
	solanaSignatureLen = 64
)

// IsValidSolanaAddress reports whether s is a base58 encoded 32-byte key.
func IsValidSolanaAddress(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == solanaAddressLen
}

// IsValidTransactionSignature reports whether s is a base58 encoded 64-byte
// ed25519 signature.
func IsValidTransactionSignature(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == solanaSignatureLen
}

// BetCreateRequest is what the mobile client sends to open a new bet.
type BetCreateRequest struct {
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	TokenAddresses []string `json:"token_addresses"`
	SolAmount      float64  `json:"sol_amount"`
	DurationHours  *int     `json:"duration_hours,omitempty"`
	UserWallet     string   `json:"user_wallet"`
	BetType        BetType  `json:"bet_type"`
}

func (req *BetCreateRequest) IsValid() error {
	if req.Question == "" {
		return errors.New("question is required")
	}
	if len(req.Options) < 2 {
		return errors.New("at least two options are required")
	}
	if len(req.TokenAddresses) != len(req.Options) {
		return fmt.Errorf("token address count %d does not match option count %d", len(req.TokenAddresses), len(req.Options))
	}
	for _, addr := range req.TokenAddresses {
		if !IsValidSolanaAddress(addr) {
			return fmt.Errorf("invalid token address: %s", addr)
		}
	}
	if !IsValidSolanaAddress(req.UserWallet) {
		return fmt.Errorf("invalid user wallet: %s", req.UserWallet)
	}
	if req.SolAmount <= 0 {
		return errors.New("sol amount must be positive")
	}
	switch req.BetType {
	case BetTypeStandard, BetTypeBonk:
		if req.DurationHours == nil || *req.DurationHours <= 0 {
			return errors.New("duration is required for timed bets")
		}
	case BetTypeTimeless:
		if req.DurationHours != nil {
			return errors.New("timeless bets cannot carry a duration")
		}
	default:
		return fmt.Errorf("unknown bet type: %s", req.BetType)
	}
	return nil
}

// ParticipateRequest records one swap into an option token.
type ParticipateRequest struct {
	ParticipantWallet    string  `json:"participant_wallet"`
	OptionIndex          int     `json:"option_index"`
	Amount               float64 `json:"amount"`
	TransactionSignature string  `json:"transaction_signature"`
}

func (req *ParticipateRequest) IsValid() error {
	if !IsValidSolanaAddress(req.ParticipantWallet) {
		return fmt.Errorf("invalid participant wallet: %s", req.ParticipantWallet)
	}
	if req.OptionIndex < 0 {
		return errors.New("option index must not be negative")
	}
	if req.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if !IsValidTransactionSignature(req.TransactionSignature) {
		return errors.New("invalid transaction signature")
	}
	return nil
}

// DrawWinnerRequest asks the server to resolve an expired bet. TokenAddresses
// must match the bet record; it doubles as a staleness check for clients that
// cached an older version of the bet.
type DrawWinnerRequest struct {
	TokenAddresses []string `json:"token_addresses"`
}

type DrawWinnerResponse struct {
	WinningOption int `json:"winning_option"`
}
