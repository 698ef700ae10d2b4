package api

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/takes-mobile/takes-server/config"
	"github.com/takes-mobile/takes-server/pkg/jupiter"
	"github.com/takes-mobile/takes-server/storage"
)

type Server struct {
	cfg          *config.Config
	redis        *storage.RedisStorage
	client       *asynq.Client
	inspector    *asynq.Inspector
	sdClient     *statsd.Client
	logger       *logrus.Logger
	db           storage.DatabaseStorage
	blockStorage *storage.BlockStorage
	jupiter      *jupiter.Client
}

// NewServer returns a new server.
func NewServer(cfg *config.Config,
	redis *storage.RedisStorage,
	client *asynq.Client,
	inspector *asynq.Inspector,
	sdClient *statsd.Client,
	db storage.DatabaseStorage,
	blockStorage *storage.BlockStorage) *Server {
	logger := logrus.WithField("service", "api").Logger

	return &Server{
		cfg:          cfg,
		redis:        redis,
		client:       client,
		inspector:    inspector,
		sdClient:     sdClient,
		logger:       logger,
		db:           db,
		blockStorage: blockStorage,
		jupiter:      jupiter.NewClient(cfg.Jupiter.PriceURL),
	}
}

func (s *Server) StartServer() error {
	e := echo.New()
	e.Logger.SetLevel(log.DEBUG)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(s.statsdMiddleware)
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 5, Burst: 30, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))

	e.GET("/ping", s.Ping)
	e.POST("/auth/token", s.IssueToken)

	grp := e.Group("/bet")
	grp.GET("/list", s.ListBets)
	grp.GET("/:id", s.GetBet)
	grp.GET("/:id/participants", s.GetParticipants)
	grp.GET("/:id/archive", s.DownloadArchive)
	grp.POST("/create", s.CreateBet, s.walletAuthMiddleware)
	grp.POST("/:id/participate", s.Participate, s.walletAuthMiddleware)
	grp.POST("/:id/draw", s.DrawWinner)

	return e.Start(fmt.Sprintf(":%d", s.cfg.Server.Port))
}
