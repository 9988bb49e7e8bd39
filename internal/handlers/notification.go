package handlers

import (
	"net/http"

	"keyopolls/internal/models"
	"keyopolls/internal/services"
	"keyopolls/internal/utils"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	inbox     *services.InboxService
	prefs     *services.PreferenceStore
	validator *utils.Validator
}

func NewNotificationHandler(inbox *services.InboxService, prefs *services.PreferenceStore) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, prefs: prefs, validator: utils.NewValidator()}
}

func notificationType(c *gin.Context, raw string) (models.NotificationType, bool) {
	if raw == "" {
		return "", true
	}
	t, ok := models.ParseNotificationType(raw)
	if !ok {
		Fail(c, utils.Validationf("Unknown notification type %q", raw))
		return "", false
	}
	return t, true
}

// List GET /api/notifications?page=&page_size=&unread=&type=
func (h *NotificationHandler) List(c *gin.Context) {
	t, ok := notificationType(c, c.Query("type"))
	if !ok {
		return
	}
	page, err := h.inbox.List(c.Request.Context(), currentProfile(c).ID, services.InboxFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
		Unread:   c.Query("unread") == "true",
		Type:     t,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.inbox.UnreadCount(c.Request.Context(), currentProfile(c).ID)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}

// Read 标记单条通知为已读
func (h *NotificationHandler) Read(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), currentProfile(c).ID, id); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification marked as read"})
}

// ReadAll 全部通知标记为已读，可按 type 过滤
func (h *NotificationHandler) ReadAll(c *gin.Context) {
	t, ok := notificationType(c, c.Query("type"))
	if !ok {
		return
	}
	n, err := h.inbox.MarkAllRead(c.Request.Context(), currentProfile(c).ID, t)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated_count": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.inbox.Delete(c.Request.Context(), currentProfile(c).ID, id); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification deleted"})
}

// Preferences GET /api/notifications/preferences
func (h *NotificationHandler) Preferences(c *gin.Context) {
	prefs, err := h.prefs.List(c.Request.Context(), currentProfile(c).ID)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreference PUT /api/notifications/preferences/:type
func (h *NotificationHandler) UpdatePreference(c *gin.Context) {
	t, ok := notificationType(c, c.Param("type"))
	if !ok {
		return
	}
	var in services.PreferenceInput
	if !bind(c, &in) {
		return
	}
	if err := h.validator.Validate(in); err != nil {
		Fail(c, err)
		return
	}
	pref, err := h.prefs.Upsert(c.Request.Context(), currentProfile(c).ID, t, in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

// RegisterDevice POST /api/devices
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var in services.DeviceInput
	if !bind(c, &in) {
		return
	}
	device, err := h.inbox.RegisterDevice(c.Request.Context(), currentProfile(c).ID, in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device_id": device.ID})
}

// UnregisterDevice DELETE /api/devices/:token
func (h *NotificationHandler) UnregisterDevice(c *gin.Context) {
	if err := h.inbox.UnregisterDevice(c.Request.Context(), currentProfile(c).ID, c.Param("token")); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Device unregistered"})
}
