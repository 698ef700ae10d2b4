package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeWinnerDraw = "bet:draw"
	TypeBetArchive = "bet:archive"

	QUEUE_NAME = "takes"
)

// WinnerDrawPayload asks the worker to resolve an expired bet.
type WinnerDrawPayload struct {
	BetID          uuid.UUID `json:"bet_id"`
	TokenAddresses []string  `json:"token_addresses"`
}

func (p *WinnerDrawPayload) Task() (*asynq.Task, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWinnerDraw, buf), nil
}

// BetArchivePayload asks the worker to snapshot a completed bet to block
// storage.
type BetArchivePayload struct {
	BetID uuid.UUID `json:"bet_id"`
}

func (p *BetArchivePayload) Task() (*asynq.Task, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBetArchive, buf), nil
}
