package api

import (
	"github.com/labstack/echo/v4"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/engine"
	xhttp "RiskArbiter/pkg/http"
	xlogger "RiskArbiter/pkg/logger"
)

// DecisionsHandler serves the read-only audit API: the decision
// ledger, the committed-budget snapshot, and the kill switch state.
type DecisionsHandler struct {
	logger *xlogger.Logger
	engine *engine.Engine
}

func NewDecisionsHandler(logger *xlogger.Logger, eng *engine.Engine) *DecisionsHandler {
	return &DecisionsHandler{logger: logger, engine: eng}
}

func (h *DecisionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/decisions", h.Decisions)
	g.GET("/decisions/:id", h.Decision)
	g.POST("/decisions/:id/execution", h.AttachExecution)
	g.POST("/decisions/:id/release", h.ReleaseDecision)
	g.GET("/budget", h.Budget)
	g.GET("/killswitch", h.KillSwitchStatus)
	g.POST("/killswitch/stop", h.EmergencyStop)
	g.POST("/killswitch/reset", h.DailyReset)
	g.GET("/health", h.Health)
	g.GET("/ws/decisions", h.Stream)
}

// Decisions returns the full ledger export in insertion order.
func (h *DecisionsHandler) Decisions(c echo.Context) error {
	decisions := h.engine.Ledger().Export()
	return xhttp.ListResponse(c, decisions, int64(len(decisions)))
}

// Decision returns a single ledgered decision by id.
func (h *DecisionsHandler) Decision(c echo.Context) error {
	id := c.Param("id")
	d, ok := h.engine.Ledger().Get(id)
	if !ok {
		return xhttp.NotFoundResponse(c, "decision not found")
	}
	return xhttp.SuccessResponse(c, d)
}

// AttachExecution enriches a ledgered decision with fill metadata.
func (h *DecisionsHandler) AttachExecution(c echo.Context) error {
	id := c.Param("id")
	var meta models.ExecutionMetadata
	if err := c.Bind(&meta); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if !h.engine.EnrichDecision(id, meta) {
		return xhttp.NotFoundResponse(c, "decision not found")
	}
	h.logger.Info("decision enriched",
		xlogger.String("decision_id", id),
		xlogger.String("order_id", meta.OrderID))
	return xhttp.SuccessResponse(c, map[string]string{"id": id})
}

// ReleaseDecision frees the budget reservation of an accepted decision
// after its position is closed.
func (h *DecisionsHandler) ReleaseDecision(c echo.Context) error {
	id := c.Param("id")
	if !h.engine.ReleaseDecision(id) {
		return xhttp.NotFoundResponse(c, "no releasable reservation for decision")
	}
	h.logger.Info("reservation released via api", xlogger.String("decision_id", id))
	return xhttp.SuccessResponse(c, map[string]string{"id": id})
}

// Budget returns the committed-risk snapshot across all dimensions.
func (h *DecisionsHandler) Budget(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Budget())
}

// KillSwitchStatus reports whether orders can currently be sent.
func (h *DecisionsHandler) KillSwitchStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"can_send_orders": h.engine.KillSwitch().CanSendOrders(),
	})
}

type stopRequest struct {
	Reason string `json:"reason"`
}

// EmergencyStop trips the manual layer unconditionally.
func (h *DecisionsHandler) EmergencyStop(c echo.Context) error {
	var req stopRequest
	if err := c.Bind(&req); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if req.Reason == "" {
		req.Reason = "manual stop via api"
	}
	h.engine.KillSwitch().EmergencyStop(req.Reason)
	return xhttp.SuccessResponse(c, map[string]string{"state": "BLOCKED"})
}

// DailyReset attempts the explicit reset; refused while any drawdown
// condition persists.
func (h *DecisionsHandler) DailyReset(c echo.Context) error {
	if !h.engine.KillSwitch().DailyReset() {
		return xhttp.ConflictResponse(c, "reset refused: blocking condition persists")
	}
	return xhttp.SuccessResponse(c, map[string]string{"state": "ACTIVE"})
}

// Health is the liveness probe.
func (h *DecisionsHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
