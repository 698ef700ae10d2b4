package types

import (
	"time"

	"github.com/google/uuid"
)

type BetStatus string

const (
	BetStatusActive    BetStatus = "active"
	BetStatusCompleted BetStatus = "completed"
	BetStatusCancelled BetStatus = "cancelled"
)

type BetType string

const (
	BetTypeStandard BetType = "standard"
	BetTypeBonk     BetType = "bonk"
	BetTypeTimeless BetType = "timeless"
)

// Bet is a prediction market instance. Each option is backed by a tradable
// token mint, so len(TokenAddresses) always equals len(Options).
type Bet struct {
	ID                uuid.UUID     `json:"id"`
	Question          string        `json:"question"`
	Options           []string      `json:"options"`
	TokenAddresses    []string      `json:"token_addresses"`
	SolAmount         float64       `json:"sol_amount"` // decimal SOL, not lamports
	DurationHours     *int          `json:"duration_hours,omitempty"`
	UserWallet        string        `json:"user_wallet"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	TotalParticipants int           `json:"total_participants"`
	TotalPool         float64       `json:"total_pool"`
	Participants      []Participant `json:"participants"`
	Status            BetStatus     `json:"status"`
	Winner            *int          `json:"winner,omitempty"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	BetType           BetType       `json:"bet_type"`
}

// Participant is appended at most once per transaction signature and never
// mutated afterwards.
type Participant struct {
	Wallet               string    `json:"wallet"`
	OptionIndex          int       `json:"option_index"`
	Amount               float64   `json:"amount"` // decimal SOL
	TransactionSignature string    `json:"transaction_signature"`
	CreatedAt            time.Time `json:"created_at"`
}
