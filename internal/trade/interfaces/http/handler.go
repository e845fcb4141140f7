package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	identityhttp "github.com/wyfcoding/p2pescrow/internal/identity/interfaces/http"
	offerdomain "github.com/wyfcoding/p2pescrow/internal/offer/domain"
	"github.com/wyfcoding/p2pescrow/internal/trade/application"
	"github.com/wyfcoding/p2pescrow/internal/trade/domain"
	walletdomain "github.com/wyfcoding/p2pescrow/internal/wallet/domain"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
)

// TradeHandler HTTP 处理器
// 负责处理与交易相关的 HTTP 请求
type TradeHandler struct {
	svc *application.TradeService
}

// NewTradeHandler 创建 HTTP 处理器实例
func NewTradeHandler(svc *application.TradeService) *TradeHandler {
	return &TradeHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *TradeHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/v1/trades")
	{
		api.POST("/accept", h.AcceptOffer)      // 接受报价单，创建交易
		api.GET("", h.ListTrades)               // 交易列表（参与方视角）
		api.GET("/:id", h.GetTrade)             // 交易详情
		api.PUT("/:id/status", h.UpdateStatus)  // 状态机推进
	}
}

// AcceptOfferRequest 接受报价单请求
type AcceptOfferRequest struct {
	OfferID       string `json:"offer_id" binding:"required"`
	AmountFiat    string `json:"amount_fiat" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// AcceptOffer 接受报价单并创建交易，托管在同一事务内锁定
func (h *TradeHandler) AcceptOffer(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	var req AcceptOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	amountFiat, err := decimal.NewFromString(req.AmountFiat)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount_fiat", "")
		return
	}

	dto, err := h.svc.AcceptOffer(c.Request.Context(), application.AcceptOfferCommand{
		OfferID:       req.OfferID,
		AcceptorID:    id.ID,
		AmountFiat:    amountFiat,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.writeError(c, "failed to accept offer", err)
		return
	}
	response.Success(c, dto)
}

// UpdateStatusRequest 状态迁移请求
type UpdateStatusRequest struct {
	Status        string `json:"status" binding:"required"`
	PaymentProof  string `json:"payment_proof"`
	PayoutMethod  string `json:"payout_method"`
	PayoutDetails string `json:"payout_details"`
	Notes         string `json:"notes"`
}

// UpdateStatus 推进交易状态机
func (h *TradeHandler) UpdateStatus(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.svc.UpdateStatus(c.Request.Context(), application.UpdateStatusCommand{
		TradeID:       c.Param("id"),
		ActorID:       id.ID,
		IsAdmin:       id.IsAdmin(),
		Status:        domain.TradeStatus(req.Status),
		PaymentProof:  req.PaymentProof,
		PayoutMethod:  req.PayoutMethod,
		PayoutDetails: req.PayoutDetails,
		Notes:         req.Notes,
	})
	if err != nil {
		h.writeError(c, "failed to update trade status", err)
		return
	}
	response.Success(c, dto)
}

// GetTrade 交易详情，仅交易双方与管理员可见
func (h *TradeHandler) GetTrade(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	dto, err := h.svc.GetTrade(c.Request.Context(), c.Param("id"), id.ID, id.IsAdmin())
	if err != nil {
		h.writeError(c, "failed to get trade", err)
		return
	}
	response.Success(c, dto)
}

// ListTrades 参与方视角的交易列表
func (h *TradeHandler) ListTrades(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	filter := domain.TradeFilter{
		Status:         domain.TradeStatus(c.Query("status")),
		Cryptocurrency: c.Query("cryptocurrency"),
		OfferID:        c.Query("offer_id"),
	}
	page, limit := parsePage(c)

	dtos, total, err := h.svc.ListTrades(c.Request.Context(), id.ID, filter, limit, (page-1)*limit)
	if err != nil {
		h.writeError(c, "failed to list trades", err)
		return
	}

	pages := (total + int64(limit) - 1) / int64(limit)
	response.Success(c, gin.H{
		"items": dtos,
		"page":  page,
		"limit": limit,
		"total": total,
		"pages": pages,
	})
}

// writeError 按错误类型映射 HTTP 状态码
// 不变量被破坏属于内部错误，对外只暴露通用失败信息
func (h *TradeHandler) writeError(c *gin.Context, msg string, err error) {
	logging.Error(c.Request.Context(), msg, "error", err)

	switch {
	case errors.Is(err, domain.ErrTradeNotFound),
		errors.Is(err, offerdomain.ErrOfferNotFound),
		errors.Is(err, walletdomain.ErrWalletNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrNotTradeParty),
		errors.Is(err, domain.ErrSelfTrade):
		response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, offerdomain.ErrOfferNotActive):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	case errors.Is(err, walletdomain.ErrInsufficientFunds):
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.Is(err, domain.ErrAmountOutOfLimits),
		errors.Is(err, domain.ErrPaymentMethodNotAccepted),
		errors.Is(err, walletdomain.ErrInvalidAmount):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, walletdomain.ErrConcurrentModification):
		response.ErrorWithStatus(c, http.StatusConflict, "concurrent modification, please retry", "")
	default:
		response.ErrorWithStatus(c, http.StatusInternalServerError, "operation failed", "")
	}
}

func parsePage(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
