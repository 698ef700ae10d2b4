package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/takes-mobile/takes-server/internal/types"
)

var (
	ErrBetNotFound        = errors.New("bet not found")
	ErrDuplicateSignature = errors.New("transaction signature already recorded")
)

type DatabaseStorage interface {
	Close() error

	CreateBet(ctx context.Context, bet *types.Bet) error
	GetBet(ctx context.Context, id uuid.UUID) (*types.Bet, error)
	GetBetsByStatus(ctx context.Context, status types.BetStatus, limit, offset int) ([]types.Bet, error)

	AppendParticipant(ctx context.Context, betID uuid.UUID, p types.Participant, now time.Time) (*types.Bet, error)
	FindParticipantBySignature(ctx context.Context, signature string) (*types.Participant, error)

	DrawWinner(ctx context.Context, betID uuid.UUID, winnerIndex int, now time.Time) (*types.Bet, error)

	GetExpiredUnresolvedBets(ctx context.Context, now time.Time) ([]types.Bet, error)
	GetUnarchivedCompletedBets(ctx context.Context, limit int) ([]types.Bet, error)
	MarkBetArchived(ctx context.Context, betID uuid.UUID, at time.Time) error

	Pool() *pgxpool.Pool
}
