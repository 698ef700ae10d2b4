package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/takes-mobile/takes-server/internal/bets"
	"github.com/takes-mobile/takes-server/internal/jwt"
	"github.com/takes-mobile/takes-server/internal/tasks"
	"github.com/takes-mobile/takes-server/internal/types"
	"github.com/takes-mobile/takes-server/storage"
)

const betCacheExpiry = 30 * time.Second

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Takes server is running")
}

// IssueToken hands out a bearer token for a wallet address. Ownership of the
// wallet is proven on-chain by the swap signatures recorded at participate
// time; the token only scopes which wallet a client may write as.
func (s *Server) IssueToken(c echo.Context) error {
	var req struct {
		Wallet string `json:"wallet"`
	}
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	if !types.IsValidSolanaAddress(req.Wallet) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid wallet address"})
	}
	token, err := jwt.GenerateJWT(req.Wallet, s.cfg.Server.JwtSecret)
	if err != nil {
		return fmt.Errorf("fail to generate token, err: %w", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

func (s *Server) CreateBet(c echo.Context) error {
	var req types.BetCreateRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	if err := req.IsValid(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if wallet, _ := c.Get("wallet").(string); wallet != req.UserWallet {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "token wallet does not match creator wallet"})
	}
	if err := s.sdClient.Count("bet.create", 1, nil, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}

	bet := bets.NewBet(&req, time.Now())
	if err := s.db.CreateBet(c.Request().Context(), bet); err != nil {
		return fmt.Errorf("fail to create bet, err: %w", err)
	}
	if err := s.redis.SetBetCacheItem(c.Request().Context(), bet, betCacheExpiry); err != nil {
		s.logger.Errorf("fail to cache bet, err: %v", err)
	}
	return c.JSON(http.StatusOK, bet)
}

func (s *Server) GetBet(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bet id"})
	}

	if cached, err := s.redis.GetBetCacheItem(c.Request().Context(), id.String()); err == nil && cached != nil {
		return c.JSON(http.StatusOK, cached)
	}

	bet, err := s.db.GetBet(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrBetNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bet not found"})
		}
		return fmt.Errorf("fail to get bet, err: %w", err)
	}
	if err := s.redis.SetBetCacheItem(c.Request().Context(), bet, betCacheExpiry); err != nil {
		s.logger.Errorf("fail to cache bet, err: %v", err)
	}
	return c.JSON(http.StatusOK, bet)
}

func (s *Server) ListBets(c echo.Context) error {
	status := types.BetStatus(c.QueryParam("status"))
	if status == "" {
		status = types.BetStatusActive
	}
	switch status {
	case types.BetStatusActive, types.BetStatusCompleted, types.BetStatusCancelled:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	list, err := s.db.GetBetsByStatus(c.Request().Context(), status, 50, 0)
	if err != nil {
		return fmt.Errorf("fail to list bets, err: %w", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) GetParticipants(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bet id"})
	}
	bet, err := s.db.GetBet(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrBetNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bet not found"})
		}
		return fmt.Errorf("fail to get bet, err: %w", err)
	}
	return c.JSON(http.StatusOK, bet.Participants)
}

// Participate records one swap into an option token as a bet placement. The
// operation is idempotent per transaction signature: replaying a recorded
// swap returns the stored participant instead of appending again.
func (s *Server) Participate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bet id"})
	}
	var req types.ParticipateRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}
	if err := req.IsValid(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if wallet, _ := c.Get("wallet").(string); wallet != req.ParticipantWallet {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "token wallet does not match participant wallet"})
	}
	if err := s.sdClient.Count("bet.participate", 1, nil, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}

	// fast path for replays; the unique constraint below remains the guard
	if marker, merr := s.redis.GetParticipationMarker(c.Request().Context(), req.TransactionSignature); merr == nil && marker != "" {
		recorded, ferr := s.db.FindParticipantBySignature(c.Request().Context(), req.TransactionSignature)
		if ferr == nil && recorded != nil {
			return c.JSON(http.StatusOK, participateResponse(recorded))
		}
	}

	participant := types.Participant{
		Wallet:               req.ParticipantWallet,
		OptionIndex:          req.OptionIndex,
		Amount:               req.Amount,
		TransactionSignature: req.TransactionSignature,
		CreatedAt:            time.Now(),
	}
	bet, err := s.db.AppendParticipant(c.Request().Context(), id, participant, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrBetNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bet not found"})
		case errors.Is(err, storage.ErrDuplicateSignature):
			// the recorded row wins whether this was a replay or a lost race
			recorded, ferr := s.db.FindParticipantBySignature(c.Request().Context(), req.TransactionSignature)
			if ferr != nil {
				return fmt.Errorf("fail to load recorded participant, err: %w", ferr)
			}
			if recorded == nil {
				return fmt.Errorf("fail to load recorded participant for signature %s", req.TransactionSignature)
			}
			return c.JSON(http.StatusOK, participateResponse(recorded))
		case errors.Is(err, bets.ErrBetNotJoinable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "bet is closed for new participants"})
		default:
			return fmt.Errorf("fail to append participant, err: %w", err)
		}
	}
	if err := s.redis.MarkParticipation(c.Request().Context(), req.TransactionSignature, id.String(), 24*time.Hour); err != nil {
		s.logger.Errorf("fail to mark participation, err: %v", err)
	}
	if err := s.redis.DeleteBetCacheItem(c.Request().Context(), id.String()); err != nil {
		s.logger.Errorf("fail to drop bet cache, err: %v", err)
	}

	resp := participateResponse(&participant)
	resp["total_pool"] = bet.TotalPool
	resp["total_participants"] = bet.TotalParticipants
	return c.JSON(http.StatusOK, resp)
}

func participateResponse(p *types.Participant) echo.Map {
	return echo.Map{
		"participant":     p,
		"amount_lamports": bets.SOLToLamports(p.Amount),
	}
}

// DrawWinner resolves an expired bet. The winning option is the option token
// with the best price at resolution time. A second draw is rejected with the
// same message whoever asks.
func (s *Server) DrawWinner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bet id"})
	}
	var req types.DrawWinnerRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("fail to parse request, err: %w", err)
	}

	bet, err := s.db.GetBet(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrBetNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bet not found"})
		}
		return fmt.Errorf("fail to get bet, err: %w", err)
	}
	if len(req.TokenAddresses) > 0 && !equalStrings(req.TokenAddresses, bet.TokenAddresses) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "token addresses do not match bet record"})
	}
	if bet.Winner != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "winner already drawn", "winning_option": *bet.Winner})
	}
	if !bets.CanDrawWinner(bet, time.Now()) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "bet has not expired yet"})
	}

	winnerIndex, err := s.jupiter.BestPerformingOption(c.Request().Context(), bet.TokenAddresses)
	if err != nil {
		return fmt.Errorf("fail to rank option tokens, err: %w", err)
	}

	updated, err := s.db.DrawWinner(c.Request().Context(), id, winnerIndex, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, bets.ErrAlreadyResolved):
			return c.JSON(http.StatusConflict, echo.Map{"error": "winner already drawn"})
		case errors.Is(err, bets.ErrNotYetExpired):
			return c.JSON(http.StatusConflict, echo.Map{"error": "bet has not expired yet"})
		default:
			return fmt.Errorf("fail to draw winner, err: %w", err)
		}
	}
	if err := s.redis.DeleteBetCacheItem(c.Request().Context(), id.String()); err != nil {
		s.logger.Errorf("fail to drop bet cache, err: %v", err)
	}

	archive := tasks.BetArchivePayload{BetID: id}
	if task, terr := archive.Task(); terr == nil {
		if _, qerr := s.client.Enqueue(task,
			asynq.TaskID("archive-"+id.String()),
			asynq.Queue(tasks.QUEUE_NAME),
			asynq.Timeout(2*time.Minute),
			asynq.Retention(time.Hour)); qerr != nil {
			s.logger.Errorf("fail to enqueue archive task, err: %v", qerr)
		}
	}

	return c.JSON(http.StatusOK, types.DrawWinnerResponse{WinningOption: *updated.Winner})
}

// DownloadArchive streams the stored snapshot of a completed bet.
func (s *Server) DownloadArchive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bet id"})
	}
	content, err := s.blockStorage.GetFile(storage.ArchiveFileName(id.String()))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "archive not found"})
	}
	return c.Blob(http.StatusOK, "application/octet-stream", content)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
