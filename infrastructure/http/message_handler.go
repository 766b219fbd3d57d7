package http

import (
	"log/slog"
	"net/http"

	"linkup/domain/chat"
	"linkup/services"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	log              *slog.Logger
	messageService   services.IMessageService
	directoryService services.IDirectoryService
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (h *MessageHandler) Users(c *gin.Context) {
	users, err := h.directoryService.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *MessageHandler) Search(c *gin.Context) {
	users, err := h.directoryService.Search(c.Request.Context(), chat.SearchCommand{
		Query:     c.Query("query"),
		ExcludeID: currentUser(c).ID,
	})
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *MessageHandler) History(c *gin.Context) {
	messages, err := h.messageService.History(c.Request.Context(), chat.HistoryCommand{
		UserID:      currentUser(c).ID,
		OtherUserID: c.Param("userId"),
	})
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	message, err := h.messageService.Send(c.Request.Context(), chat.SendMessageCommand{
		SenderID:   currentUser(c).ID,
		ReceiverID: c.Param("userId"),
		Text:       req.Text,
		Image:      req.Image,
	})
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}
