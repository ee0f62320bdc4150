package httpinterface

import (
	"errors"
	"net/http"

	"github.com/btcconnect/connectkit/internal/core/domain"
	webhookpubsub "github.com/btcconnect/connectkit/internal/infrastructure/pubsub/webhook"
	"github.com/gin-gonic/gin"
)

type webhookHandler struct {
	webhookSvc webhookpubsub.Service
}

type addWebhookRequest struct {
	Topic    string `json:"topic" binding:"required"`
	Endpoint string `json:"endpoint" binding:"required"`
	Secret   string `json:"secret"`
}

func (h *webhookHandler) addWebhook(c *gin.Context) {
	var req addWebhookRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.webhookSvc.Subscribe(req.Topic, req.Endpoint, req.Secret)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": domain.NewRPCError(domain.CodeInvalidParams, "%s", err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *webhookHandler) removeWebhook(c *gin.Context) {
	if err := h.webhookSvc.Unsubscribe(c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, webhookpubsub.ErrWebhookNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": domain.ToRPCError(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *webhookHandler) listWebhooks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"webhooks": h.webhookSvc.ListWebhooks(c.Query("topic")),
	})
}
