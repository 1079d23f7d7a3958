package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"

	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	icache "github.com/sjn96/solana-ai-trading-bot-sub002/internal/service/cache"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/service/ratelimit"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/usecase"
	xhttp "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/http"
	xlogger "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/util"
)

// StatusHandler serves the operator API: process status, positions,
// per-symbol fused signals, candle history, and freeze acknowledgement.
type StatusHandler struct {
	status  *usecase.StatusUseCase
	candles *usecase.CandlesUseCase
	learner *usecase.Learner
	cache   icache.BytesCache
	rl      *ratelimit.Limiter
	logger  *xlogger.Logger
}

func NewStatusHandler(logger *xlogger.Logger, status *usecase.StatusUseCase, candles *usecase.CandlesUseCase, learner *usecase.Learner) *StatusHandler {
	return &StatusHandler{status: status, candles: candles, learner: learner, rl: ratelimit.New(), logger: logger}
}

// SetCache enables short-TTL response caching for signal reads.
func (h *StatusHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/positions", h.Positions)
	g.GET("/signals/:symbol", h.Signals)
	g.GET("/candles/:symbol", h.Candles)
	g.POST("/acknowledge/:symbol", h.Acknowledge)
	g.POST("/directives", h.SubmitDirective)
}

func (h *StatusHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *StatusHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.status.Status(time.Now()))
}

func (h *StatusHandler) Positions(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.status.Positions())
}

func (h *StatusHandler) Signals(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	if !h.rl.Allow(c.RealIP()+":signals", 5, 2) {
		h.logger.Warn("signals rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("rate_limited", "", "rate limited", 429))
	}

	cacheKey := "signals:" + symbol
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("signals cache_get_error", xlogger.Error(err))
		} else if ok {
			var cached usecase.SymbolSignals
			if err := json.Unmarshal(b, &cached); err == nil {
				return xhttp.SuccessResponse(c, &cached)
			}
		}
	}

	res, err := h.status.Signals(symbol, time.Now())
	if err != nil {
		h.logger.Warn("signals lookup error", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.NotFoundResponse(c, err.Error())
	}
	if h.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 2*time.Second); err != nil {
				h.logger.Warn("signals cache_set_error", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StatusHandler) Candles(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	tf := domrepo.NormalizeTimeframe(c.QueryParam("tf"))
	limit := util.ParseIntDefault(c.QueryParam("limit"), 500)
	until := util.ParseTimeDefault(c.QueryParam("to"), time.Now())

	candles, err := h.candles.GetCandlesUntil(c.Request().Context(), symbol, limit, tf, until)
	if err != nil {
		h.logger.Warn("candles lookup error", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, candles)
}

func (h *StatusHandler) Acknowledge(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	if err := h.status.Acknowledge(symbol); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	h.logger.Info("freeze acknowledged", xlogger.String("symbol", symbol))
	return xhttp.SuccessResponse(c, map[string]string{"symbol": symbol, "state": "cleared"})
}

type directiveRequest struct {
	Target   string  `json:"target" validate:"required,oneof=analyzer risk planner"`
	Key      string  `json:"key" validate:"required"`
	Delta    float64 `json:"delta" validate:"required"`
	ClampMin float64 `json:"clamp_min"`
	ClampMax float64 `json:"clamp_max"`
	Reason   string  `json:"reason" default:"operator"`
}

// SubmitDirective lets an operator push a manual parameter adjustment through
// the same queue the feedback processor uses, so it gets the same clamping,
// validation, and replay protection.
func (h *StatusHandler) SubmitDirective(c echo.Context) error {
	var req directiveRequest
	if verrs := xhttp.ReadAndValidateRequest(c, &req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}
	d := &models.AdjustmentDirective{
		ID:        uuid.NewString(),
		Target:    models.DirectiveTarget(req.Target),
		Key:       req.Key,
		Delta:     req.Delta,
		ClampMin:  req.ClampMin,
		ClampMax:  req.ClampMax,
		Reason:    req.Reason,
		CreatedAt: time.Now(),
	}
	if err := h.learner.Enqueue(c.Request().Context(), d); err != nil {
		h.logger.Warn("directive enqueue failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("directive not accepted"))
	}
	h.logger.Info("operator directive accepted",
		xlogger.String("target", req.Target), xlogger.String("key", req.Key))
	return xhttp.CreatedResponse(c, d)
}
