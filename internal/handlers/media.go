package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatehub/api/internal/service"
)

type uploadResponse struct {
	Key       string `json:"key"`
	PublicURL string `json:"publicUrl"`
}

func (h HandlerSet) RecordUpload(c *gin.Context) {
	owner, ok := principalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.PostForm("sessionId")
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	result, err := h.uploadService.RecordUpload(c.Request.Context(), service.RecordUploadInput{
		OwnerID:   owner,
		SessionID: sessionID,
		File:      file,
		Header:    header,
	})
	if err != nil {
		respondError(c, h.log, owner, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		Key:       result.Key,
		PublicURL: result.PublicURL,
	})
}

func (h HandlerSet) DeleteTrackedImage(c *gin.Context) {
	owner, ok := principalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key_required"})
		return
	}

	if err := h.uploadService.DeleteTrackedImage(c.Request.Context(), owner, key); err != nil {
		respondError(c, h.log, owner, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": key})
}

// CleanupSession always reports success; purge problems are logged and the
// leftovers wait for the retention sweep.
func (h HandlerSet) CleanupSession(c *gin.Context) {
	owner, ok := principalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	h.reconcileService.CleanupSession(c.Request.Context(), owner, c.Param("sessionId"))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
