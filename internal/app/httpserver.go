package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/ctxutil"
	"github.com/Spok95/mini-hemis/internal/logging"
	"github.com/Spok95/mini-hemis/internal/metrics"
	"github.com/Spok95/mini-hemis/internal/models"
	"github.com/Spok95/mini-hemis/internal/observability"
)

const (
	headerBotSecret = "X-Bot-Secret"
	headerRequestID = "X-Request-ID"
)

// APIService — операции academic.Service, доступные по HTTP.
type APIService interface {
	Login(ctx context.Context, login, secret string) (models.Identity, models.Profile, error)
	LinkChat(ctx context.Context, chatID int64, login, secret string) (models.Identity, models.Profile, error)
	GetProfile(ctx context.Context, login string) (models.Profile, error)
	GetSchedule(ctx context.Context, login string) ([]models.ScheduleEntry, error)
	GetScheduleForChat(ctx context.Context, chatID int64) ([]models.ScheduleEntry, error)
	Subscribers(ctx context.Context) ([]int64, error)
}

type HTTPConfig struct {
	Addr        string
	BotSecret   string
	CORSOrigins []string
}

type HTTPServer struct {
	srv *http.Server
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type linkRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
	ChatID   int64  `json:"chatId" binding:"required"`
}

type identityResponse struct {
	Identity models.Identity `json:"identity"`
	Profile  models.Profile  `json:"profile"`
}

// NewRouter собирает gin-маршруты. ping проверяет хранилище для /healthz.
func NewRouter(cfg HTTPConfig, svc APIService, ping func(context.Context) error, log *zap.Logger) *gin.Engine {
	log = logging.OrNop(log).Named("http")

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(log))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", headerBotSecret, headerRequestID},
			ExposeHeaders: []string{"Content-Length", headerRequestID},
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 800*time.Millisecond)
		defer cancel()
		if ping != nil {
			if err := ping(ctx); err != nil {
				c.String(http.StatusServiceUnavailable, "db not ok: "+err.Error())
				return
			}
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	h := &apiHandlers{svc: svc, log: log}
	api := r.Group("/api")
	api.Use(botSecret(cfg.BotSecret))
	{
		api.POST("/auth/login", h.login)
		api.GET("/identities/:login/profile", h.profile)
		api.GET("/identities/:login/schedule", h.schedule)

		api.POST("/bot/link-account", h.linkAccount)
		api.GET("/bot/subscribers", h.subscribers)
		api.GET("/bot/schedule/:chatId", h.chatSchedule)
	}
	return r
}

// StartHTTP запускает сервер и гасит его по отмене ctx.
func StartHTTP(ctx context.Context, cfg HTTPConfig, handler http.Handler, log *zap.Logger) *HTTPServer {
	log = logging.OrNop(log).Named("http")
	srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
			observability.CaptureErr(err)
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	log.Info("http server started", zap.String("addr", cfg.Addr))
	return &HTTPServer{srv: srv}
}

// botSecret — маршруты /api доступны только боту и фронту с общим секретом.
func botSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(headerBotSecret)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Доступ запрещён"})
			return
		}
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithRequestID(c.Request.Context(), c.GetHeader(headerRequestID))
		id, _ := ctxutil.RequestID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		id, _ := ctxutil.RequestID(c.Request.Context())
		log.Debug("request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

type apiHandlers struct {
	svc APIService
	log *zap.Logger
}

func (h *apiHandlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Нужны login и password"})
		return
	}
	idn, p, err := h.svc.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, identityResponse{Identity: idn, Profile: p})
}

func (h *apiHandlers) profile(c *gin.Context) {
	p, err := h.svc.GetProfile(c.Request.Context(), c.Param("login"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *apiHandlers) schedule(c *gin.Context) {
	entries, err := h.svc.GetSchedule(c.Request.Context(), c.Param("login"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *apiHandlers) linkAccount(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Нужны login, password и chatId"})
		return
	}
	idn, p, err := h.svc.LinkChat(c.Request.Context(), req.ChatID, req.Login, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, identityResponse{Identity: idn, Profile: p})
}

func (h *apiHandlers) subscribers(c *gin.Context) {
	ids, err := h.svc.Subscribers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, ids)
}

func (h *apiHandlers) chatSchedule(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "chatId должен быть числом"})
		return
	}
	entries, err := h.svc.GetScheduleForChat(c.Request.Context(), chatID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// fail отвечает статусом и текстом из academic.Describe; внутренние ошибки уходят в Sentry.
func (h *apiHandlers) fail(c *gin.Context, err error) {
	status, msg := academic.Describe(err)
	id, _ := ctxutil.RequestID(c.Request.Context())
	if !academic.IsUserError(err) {
		h.log.Error("request failed", zap.String("request_id", id), zap.String("route", c.FullPath()), zap.Error(err))
		observability.CaptureErrWith(err, map[string]string{"request_id": id, "route": c.FullPath()})
	} else {
		h.log.Info("request rejected", zap.String("request_id", id), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"message": msg})
}
