package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	identityhttp "github.com/wyfcoding/p2pescrow/internal/identity/interfaces/http"
	"github.com/wyfcoding/p2pescrow/internal/notification/application"
	"github.com/wyfcoding/p2pescrow/internal/notification/domain"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
)

// NotificationHandler HTTP 处理器
type NotificationHandler struct {
	svc *application.NotificationService
}

// NewNotificationHandler 创建 HTTP 处理器实例
func NewNotificationHandler(svc *application.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/v1/notifications")
	{
		api.GET("", h.ListNotifications)     // 当前用户通知列表
		api.PUT("/:id/read", h.MarkRead)     // 标记已读
	}
}

// ListNotifications 当前用户的通知列表
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	onlyUnread := c.Query("unread") == "true"
	page, limit := parsePage(c)

	notifications, total, err := h.svc.ListNotifications(c.Request.Context(), id.ID, onlyUnread, limit, (page-1)*limit)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to list notifications", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "operation failed", "")
		return
	}

	pages := (total + int64(limit) - 1) / int64(limit)
	response.Success(c, gin.H{
		"items": notifications,
		"page":  page,
		"limit": limit,
		"total": total,
		"pages": pages,
	})
}

// MarkRead 标记通知已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := identityhttp.MustIdentity(c)
	if !ok {
		return
	}

	err := h.svc.MarkRead(c.Request.Context(), id.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, "notification not found", "")
			return
		}
		logging.Error(c.Request.Context(), "failed to mark notification read", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "operation failed", "")
		return
	}
	response.Success(c, gin.H{"notification_id": c.Param("id"), "read": true})
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
