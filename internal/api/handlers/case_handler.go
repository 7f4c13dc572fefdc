package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/services"
	"github.com/yoockh/oscesim/internal/utils"
)

type CaseHandler struct {
	svc services.CaseService
}

func NewCaseHandler(svc services.CaseService) *CaseHandler {
	return &CaseHandler{svc: svc}
}

func (h *CaseHandler) List(c *gin.Context) {
	cases, err := h.svc.List(c.Request.Context(), queryLimit(c, 50, 500))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cases})
}

func (h *CaseHandler) Get(c *gin.Context) {
	cs, err := h.svc.Get(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

// Put creates or replaces a case. The path id wins over the body.
func (h *CaseHandler) Put(c *gin.Context) {
	const op = "CaseHandler.Put"
	var cs models.Case
	if err := c.ShouldBindJSON(&cs); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid case body", err))
		return
	}
	cs.CaseID = c.Param("case_id")

	if err := h.svc.Upsert(c.Request.Context(), &cs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}
