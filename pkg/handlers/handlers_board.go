package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/ionm-board/pkg/board"
	"github.com/arnavshah/ionm-board/pkg/models"
)

// GetBoard returns the current slots and roster
func (h *Handler) GetBoard(c *gin.Context) {
	c.JSON(http.StatusOK, h.Board.Snapshot())
}

// Drop applies a drag-and-drop move
func (h *Handler) Drop(c *gin.Context) {
	var p models.DropPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates, err := h.Board.Drop(c.Request.Context(), p)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates})
}

// SetDuty writes a slot occupant's duty
func (h *Handler) SetDuty(c *gin.Context) {
	label := c.Param("label")
	var req struct {
		Duty string `json:"duty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, ok := h.Board.Snapshot().Slot(label)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown slot " + label})
		return
	}
	if !slot.Occupied() {
		c.JSON(http.StatusOK, gin.H{"message": "slot is empty, nothing written"})
		return
	}
	if err := h.Engine.EditDuty(c.Request.Context(), slot, req.Duty); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": label, "duty": req.Duty, "room": board.RoomFor(req.Duty)})
}

// ResetBoard clears every slot after explicit confirmation
func (h *Handler) ResetBoard(c *gin.Context) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.Board.ResetBoard(c.Request.Context(), req.Confirm)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Board cleared", "cleared": n})
}
