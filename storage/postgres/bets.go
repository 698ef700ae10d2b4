package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/takes-mobile/takes-server/internal/bets"
	"github.com/takes-mobile/takes-server/internal/types"
	"github.com/takes-mobile/takes-server/storage"
)

const betColumns = `id, question, options, token_addresses, sol_amount, duration_hours, user_wallet,
	created_at, updated_at, total_participants, total_pool, status, winner, end_time, bet_type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(row rowScanner) (*types.Bet, error) {
	var bet types.Bet
	err := row.Scan(
		&bet.ID,
		&bet.Question,
		&bet.Options,
		&bet.TokenAddresses,
		&bet.SolAmount,
		&bet.DurationHours,
		&bet.UserWallet,
		&bet.CreatedAt,
		&bet.UpdatedAt,
		&bet.TotalParticipants,
		&bet.TotalPool,
		&bet.Status,
		&bet.Winner,
		&bet.EndTime,
		&bet.BetType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrBetNotFound
		}
		return nil, fmt.Errorf("failed to scan bet: %w", err)
	}
	return &bet, nil
}

func (p *PostgresBackend) CreateBet(ctx context.Context, bet *types.Bet) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	query := `INSERT INTO bets
	(id, question, options, token_addresses, sol_amount, duration_hours, user_wallet,
	 created_at, updated_at, total_participants, total_pool, status, winner, end_time, bet_type)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := p.pool.Exec(ctx, query,
		bet.ID, bet.Question, bet.Options, bet.TokenAddresses, bet.SolAmount, bet.DurationHours,
		bet.UserWallet, bet.CreatedAt, bet.UpdatedAt, bet.TotalParticipants, bet.TotalPool,
		bet.Status, bet.Winner, bet.EndTime, bet.BetType)
	if err != nil {
		return fmt.Errorf("failed to insert bet: %w", err)
	}
	return nil
}

func (p *PostgresBackend) GetBet(ctx context.Context, id uuid.UUID) (*types.Bet, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}
	row := p.pool.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)
	bet, err := scanBet(row)
	if err != nil {
		return nil, err
	}
	participants, err := p.loadParticipants(ctx, p.pool, id)
	if err != nil {
		return nil, err
	}
	bet.Participants = participants
	return bet, nil
}

func (p *PostgresBackend) GetBetsByStatus(ctx context.Context, status types.BetStatus, limit, offset int) ([]types.Bet, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+betColumns+` FROM bets WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	var result []types.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *bet)
	}
	return result, rows.Err()
}

// DrawWinner resolves a bet exactly once. The lifecycle check runs on the
// locked row and the update is additionally guarded by winner IS NULL, so a
// concurrent second draw loses the race and sees ErrAlreadyResolved.
func (p *PostgresBackend) DrawWinner(ctx context.Context, betID uuid.UUID, winnerIndex int, now time.Time) (*types.Bet, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin db transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, betID)
	bet, err := scanBet(row)
	if err != nil {
		return nil, err
	}
	bet.Participants, err = p.loadParticipants(ctx, tx, betID)
	if err != nil {
		return nil, err
	}

	if err := bets.DrawWinner(bet, winnerIndex, now); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE bets SET winner = $2, status = $3, updated_at = $4 WHERE id = $1 AND winner IS NULL`,
		betID, *bet.Winner, bet.Status, bet.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update bet winner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, bets.ErrAlreadyResolved
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit db transaction: %w", err)
	}
	return bet, nil
}

func (p *PostgresBackend) GetExpiredUnresolvedBets(ctx context.Context, now time.Time) ([]types.Bet, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+betColumns+` FROM bets
		 WHERE status = $1 AND winner IS NULL AND end_time IS NOT NULL AND end_time <= $2`,
		types.BetStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired bets: %w", err)
	}
	defer rows.Close()

	var result []types.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *bet)
	}
	return result, rows.Err()
}

func (p *PostgresBackend) GetUnarchivedCompletedBets(ctx context.Context, limit int) ([]types.Bet, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+betColumns+` FROM bets WHERE status = $1 AND archived_at IS NULL LIMIT $2`,
		types.BetStatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unarchived bets: %w", err)
	}
	defer rows.Close()

	var result []types.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *bet)
	}
	return result, rows.Err()
}

func (p *PostgresBackend) MarkBetArchived(ctx context.Context, betID uuid.UUID, at time.Time) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	_, err := p.pool.Exec(ctx, `UPDATE bets SET archived_at = $2 WHERE id = $1`, betID, at)
	if err != nil {
		return fmt.Errorf("failed to mark bet archived: %w", err)
	}
	return nil
}
