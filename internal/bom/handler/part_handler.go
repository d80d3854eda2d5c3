package handler

import (
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/gin-gonic/gin"
)

type PartHandler struct {
	partRepo *repository.PartRepository
}

func NewPartHandler(partRepo *repository.PartRepository) *PartHandler {
	return &PartHandler{partRepo: partRepo}
}

// ListParts GET /parts 物料列表
func (h *PartHandler) ListParts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	parts, total, err := h.partRepo.List(c.Request.Context(), c.Query("keyword"), page, pageSize)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{
		Items:      parts,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

// GetPart GET /parts/:id 物料详情
func (h *PartHandler) GetPart(c *gin.Context) {
	part, err := h.partRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "Part not found")
		return
	}
	Success(c, part)
}
