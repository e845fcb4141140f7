package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	identityhttp "github.com/wyfcoding/p2pescrow/internal/identity/interfaces/http"
	"github.com/wyfcoding/p2pescrow/internal/wallet/application"
	"github.com/wyfcoding/p2pescrow/internal/wallet/domain"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
)

// WalletHandler HTTP 处理器
// 负责处理与钱包相关的 HTTP 请求
type WalletHandler struct {
	svc *application.WalletService
}

// NewWalletHandler 创建 HTTP 处理器实例
func NewWalletHandler(svc *application.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/v1/wallets")
	{
		api.POST("", h.CreateWallet)            // 创建钱包
		api.GET("", h.ListWallets)              // 钱包列表
		api.GET("/:id", h.GetWallet)            // 钱包详情
		api.GET("/:id/history", h.GetHistory)   // 流水
		api.POST("/deposit", h.Deposit)         // 充值（模拟确认）
		api.POST("/:id/withdraw", h.Withdraw)   // 提现
		api.POST("/swap", h.Swap)               // 币币兑换
		api.PUT("/:id/default", h.SetDefault)   // 设置默认钱包
		api.DELETE("/:id", h.Disable)           // 软停用
	}
}

// CreateWalletRequest 创建钱包请求
type CreateWalletRequest struct {
	Currency string `json:"currency" binding:"required"`
	Network  string `json:"network" binding:"required"`
}

// CreateWallet 创建钱包
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.svc.CreateWallet(c.Request.Context(), application.CreateWalletCommand{
		UserID:   id.ID,
		Currency: req.Currency,
		Network:  req.Network,
	})
	if err != nil {
		h.writeError(c, "failed to create wallet", err)
		return
	}
	response.Success(c, dto)
}

// ListWallets 钱包列表
func (h *WalletHandler) ListWallets(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	dtos, err := h.svc.ListWallets(c.Request.Context(), id.ID)
	if err != nil {
		h.writeError(c, "failed to list wallets", err)
		return
	}
	response.Success(c, dtos)
}

// GetWallet 钱包详情
func (h *WalletHandler) GetWallet(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	dto, err := h.svc.GetWallet(c.Request.Context(), id.ID, c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get wallet", err)
		return
	}
	response.Success(c, dto)
}

// GetHistory 钱包流水
func (h *WalletHandler) GetHistory(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	page, limit := parsePage(c)
	entries, total, err := h.svc.GetHistory(c.Request.Context(), id.ID, c.Param("id"), limit, (page-1)*limit)
	if err != nil {
		h.writeError(c, "failed to get wallet history", err)
		return
	}
	response.Success(c, paginated(entries, page, limit, total))
}

// DepositRequest 充值请求
type DepositRequest struct {
	Currency string `json:"currency" binding:"required"`
	Network  string `json:"network" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	TxHash   string `json:"tx_hash"`
}

// Deposit 充值（链上确认为模拟流程）
func (h *WalletHandler) Deposit(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount", "")
		return
	}

	dto, err := h.svc.Deposit(c.Request.Context(), application.DepositCommand{
		UserID:   id.ID,
		Currency: req.Currency,
		Network:  req.Network,
		Amount:   amount,
		TxHash:   req.TxHash,
	})
	if err != nil {
		h.writeError(c, "failed to deposit", err)
		return
	}
	response.Success(c, dto)
}

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	Amount  string `json:"amount" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// Withdraw 提现
func (h *WalletHandler) Withdraw(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount", "")
		return
	}

	dto, err := h.svc.Withdraw(c.Request.Context(), application.WithdrawCommand{
		UserID:   id.ID,
		WalletID: c.Param("id"),
		Amount:   amount,
		Address:  req.Address,
	})
	if err != nil {
		h.writeError(c, "failed to withdraw", err)
		return
	}
	response.Success(c, dto)
}

// SwapRequest 币币兑换请求
type SwapRequest struct {
	FromCurrency string `json:"from_currency" binding:"required"`
	ToCurrency   string `json:"to_currency" binding:"required"`
	Network      string `json:"network" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
}

// Swap 币币兑换
func (h *WalletHandler) Swap(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount", "")
		return
	}

	dto, err := h.svc.Swap(c.Request.Context(), application.SwapCommand{
		UserID:       id.ID,
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		Network:      req.Network,
		Amount:       amount,
	})
	if err != nil {
		h.writeError(c, "failed to swap", err)
		return
	}
	response.Success(c, dto)
}

// SetDefault 设置默认钱包
func (h *WalletHandler) SetDefault(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	if err := h.svc.SetDefault(c.Request.Context(), id.ID, c.Param("id")); err != nil {
		h.writeError(c, "failed to set default wallet", err)
		return
	}
	response.Success(c, gin.H{"wallet_id": c.Param("id"), "is_default": true})
}

// Disable 软停用钱包
func (h *WalletHandler) Disable(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	if err := h.svc.Disable(c.Request.Context(), id.ID, c.Param("id")); err != nil {
		h.writeError(c, "failed to disable wallet", err)
		return
	}
	response.Success(c, gin.H{"wallet_id": c.Param("id"), "is_active": false})
}

// writeError 按错误类型映射 HTTP 状态码；内部错误不向用户暴露细节
func (h *WalletHandler) writeError(c *gin.Context, msg string, err error) {
	logging.Error(c.Request.Context(), msg, "error", err)

	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, "wallet not found", "")
	case errors.Is(err, domain.ErrInsufficientFunds):
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, "insufficient funds", "")
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrBalanceRemaining),
		errors.Is(err, domain.ErrWalletDisabled),
		errors.Is(err, application.ErrUnsupportedCurrency),
		errors.Is(err, application.ErrSameCurrencySwap):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, application.ErrPriceUnavailable):
		response.ErrorWithStatus(c, http.StatusServiceUnavailable, "price unavailable", "")
	case errors.Is(err, domain.ErrConcurrentModification):
		response.ErrorWithStatus(c, http.StatusConflict, "operation conflicted, please retry", "")
	default:
		// 不变量违规等内部错误只回泛化信息，细节留在日志
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

func paginated(items any, page, limit int, total int64) gin.H {
	pages := (total + int64(limit) - 1) / int64(limit)
	return gin.H{
		"items": items,
		"page":  page,
		"limit": limit,
		"total": total,
		"pages": pages,
	}
}
