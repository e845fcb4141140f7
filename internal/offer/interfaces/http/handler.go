package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	identityhttp "github.com/wyfcoding/p2pescrow/internal/identity/interfaces/http"
	"github.com/wyfcoding/p2pescrow/internal/offer/application"
	"github.com/wyfcoding/p2pescrow/internal/offer/domain"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
)

// OfferHandler HTTP 处理器
// 负责处理与报价单相关的 HTTP 请求
type OfferHandler struct {
	svc *application.OfferService
}

// NewOfferHandler 创建 HTTP 处理器实例
func NewOfferHandler(svc *application.OfferService) *OfferHandler {
	return &OfferHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *OfferHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/v1/offers")
	{
		api.POST("", h.CreateOffer)        // 创建报价单
		api.GET("", h.ListOffers)          // 报价单列表
		api.GET("/:id", h.GetOffer)        // 报价单详情
		api.PUT("/:id/status", h.SetStatus) // 所有者取消
	}
}

// CreateOfferRequest 创建报价单请求
type CreateOfferRequest struct {
	Type           string   `json:"type" binding:"required"`
	Cryptocurrency string   `json:"cryptocurrency" binding:"required"`
	FiatCurrency   string   `json:"fiat_currency" binding:"required"`
	Amount         string   `json:"amount" binding:"required"`
	Price          string   `json:"price" binding:"required"`
	MinLimit       string   `json:"min_limit" binding:"required"`
	MaxLimit       string   `json:"max_limit" binding:"required"`
	PaymentMethods []string `json:"payment_methods" binding:"required"`
	TTLHours       int      `json:"ttl_hours"`
}

// CreateOffer 创建报价单
func (h *OfferHandler) CreateOffer(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount", "")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid price", "")
		return
	}
	minLimit, err := decimal.NewFromString(req.MinLimit)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid min_limit", "")
		return
	}
	maxLimit, err := decimal.NewFromString(req.MaxLimit)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid max_limit", "")
		return
	}

	dto, err := h.svc.CreateOffer(c.Request.Context(), application.CreateOfferCommand{
		OwnerID:        id.ID,
		Type:           req.Type,
		Cryptocurrency: req.Cryptocurrency,
		FiatCurrency:   req.FiatCurrency,
		Amount:         amount,
		Price:          price,
		MinLimit:       minLimit,
		MaxLimit:       maxLimit,
		PaymentMethods: req.PaymentMethods,
		TTL:            time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		h.writeError(c, "failed to create offer", err)
		return
	}
	response.Success(c, dto)
}

// ListOffers 报价单列表，支持方向/币种/支付方式/金额区间过滤
func (h *OfferHandler) ListOffers(c *gin.Context) {
	filter := domain.OfferFilter{
		Type:           domain.OfferType(c.Query("type")),
		Cryptocurrency: c.Query("cryptocurrency"),
		FiatCurrency:   c.Query("fiat_currency"),
		PaymentMethod:  c.Query("payment_method"),
		OwnerID:        c.Query("owner_id"),
	}
	if v := c.Query("min_amount"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			filter.MinAmountFiat = d
		}
	}
	if v := c.Query("max_amount"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			filter.MaxAmountFiat = d
		}
	}

	page, limit := parsePage(c)
	dtos, total, err := h.svc.ListOffers(c.Request.Context(), filter, limit, (page-1)*limit)
	if err != nil {
		h.writeError(c, "failed to list offers", err)
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

// GetOffer 报价单详情
func (h *OfferHandler) GetOffer(c *gin.Context) {
	dto, err := h.svc.GetOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get offer", err)
		return
	}
	response.Success(c, dto)
}

// SetStatusRequest 状态变更请求
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus 所有者取消报价单
func (h *OfferHandler) SetStatus(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	err := h.svc.SetStatus(c.Request.Context(), application.SetOfferStatusCommand{
		OfferID: c.Param("id"),
		OwnerID: id.ID,
		Status:  req.Status,
	})
	if err != nil {
		h.writeError(c, "failed to update offer status", err)
		return
	}
	response.Success(c, gin.H{"offer_id": c.Param("id"), "status": req.Status})
}

// writeError 按错误类型映射 HTTP 状态码
func (h *OfferHandler) writeError(c *gin.Context, msg string, err error) {
	logging.Error(c.Request.Context(), msg, "error", err)

	switch {
	case errors.Is(err, domain.ErrOfferNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, "offer not found", "")
	case errors.Is(err, domain.ErrNotOfferOwner):
		response.ErrorWithStatus(c, http.StatusForbidden, "not the offer owner", "")
	case errors.Is(err, domain.ErrOfferNotActive),
		errors.Is(err, domain.ErrInvalidStatusChange):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	case errors.Is(err, domain.ErrInvalidLimits),
		errors.Is(err, domain.ErrNoPaymentMethods),
		errors.Is(err, domain.ErrUnsupportedCurrency):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
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
