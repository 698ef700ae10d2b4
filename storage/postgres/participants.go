package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/takes-mobile/takes-server/internal/bets"
	"github.com/takes-mobile/takes-server/internal/types"
	"github.com/takes-mobile/takes-server/storage"
)

const uniqueViolation = "23505"

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (p *PostgresBackend) loadParticipants(ctx context.Context, q querier, betID uuid.UUID) ([]types.Participant, error) {
	rows, err := q.Query(ctx,
		`SELECT wallet, option_index, amount, transaction_signature, created_at
		 FROM bet_participants WHERE bet_id = $1 ORDER BY id`,
		betID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var result []types.Participant
	for rows.Next() {
		var participant types.Participant
		if err := rows.Scan(
			&participant.Wallet,
			&participant.OptionIndex,
			&participant.Amount,
			&participant.TransactionSignature,
			&participant.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		result = append(result, participant)
	}
	return result, rows.Err()
}

// AppendParticipant records one bet placement. The bet row is locked, the
// lifecycle gate runs against the locked state, the participant row is
// inserted, and the totals written back are recomputed from the full
// participant list rather than incremented. The unique constraint on
// transaction_signature makes the append idempotent per swap.
func (p *PostgresBackend) AppendParticipant(ctx context.Context, betID uuid.UUID, participant types.Participant, now time.Time) (*types.Bet, error) {
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

	if err := bets.AppendParticipant(bet, participant, now); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bet_participants (bet_id, wallet, option_index, amount, transaction_signature, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		betID, participant.Wallet, participant.OptionIndex, participant.Amount,
		participant.TransactionSignature, participant.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, storage.ErrDuplicateSignature
		}
		return nil, fmt.Errorf("failed to insert participant: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE bets SET total_participants = $2, total_pool = $3, updated_at = $4 WHERE id = $1`,
		betID, bet.TotalParticipants, bet.TotalPool, bet.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update bet totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit db transaction: %w", err)
	}
	return bet, nil
}

func (p *PostgresBackend) FindParticipantBySignature(ctx context.Context, signature string) (*types.Participant, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}
	var participant types.Participant
	err := p.pool.QueryRow(ctx,
		`SELECT wallet, option_index, amount, transaction_signature, created_at
		 FROM bet_participants WHERE transaction_signature = $1`,
		signature).Scan(
		&participant.Wallet,
		&participant.OptionIndex,
		&participant.Amount,
		&participant.TransactionSignature,
		&participant.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query participant: %w", err)
	}
	return &participant, nil
}
