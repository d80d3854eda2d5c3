package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/bitfantasy/nimo-bom/internal/bom/service"
	"github.com/gin-gonic/gin"
)

type BOMHandler struct {
	revisionSvc *service.RevisionService
	exportSvc   *service.ExportService
	archiveSvc  *service.ArchiveService
	bomRepo     *repository.BOMRepository
	logRepo     *repository.LoadLogRepository
}

func NewBOMHandler(revisionSvc *service.RevisionService, exportSvc *service.ExportService, archiveSvc *service.ArchiveService, bomRepo *repository.BOMRepository, logRepo *repository.LoadLogRepository) *BOMHandler {
	return &BOMHandler{
		revisionSvc: revisionSvc,
		exportSvc:   exportSvc,
		archiveSvc:  archiveSvc,
		bomRepo:     bomRepo,
		logRepo:     logRepo,
	}
}

// Load POST /bom/loads 导入结构化BOM快照
func (h *BOMHandler) Load(c *gin.Context) {
	var req service.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	userID := c.GetString("user_id")
	result := h.revisionSvc.LoadBOM(c.Request.Context(), &req, userID)
	respondLoad(c, result)
}

// LoadReport POST /bom/loads/report 导入原始导出报表
func (h *BOMHandler) LoadReport(c *gin.Context) {
	encoding := c.Query("encoding")
	userID := c.GetString("user_id")

	result := h.revisionSvc.LoadFromReport(c.Request.Context(), c.Request.Body, encoding, userID)
	respondLoad(c, result)
}

// respondLoad 创建了新修订返回201；不变和业务失败都返回200，
// 调用方按success标志分支，HTTP错误码只留给传输层问题。
func respondLoad(c *gin.Context, result *service.LoadResult) {
	if result.Success && result.NewRevisionCreated {
		Created(c, result)
		return
	}
	Success(c, result)
}

// ListLoads GET /bom/loads 导入日志列表
func (h *BOMHandler) ListLoads(c *gin.Context) {
	page, pageSize := GetPagination(c)
	logs, total, err := h.logRepo.List(c.Request.Context(), c.Query("part_no"), c.Query("outcome"), page, pageSize)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{
		Items:      logs,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

// GetLoadArchive GET /bom/loads/:id/report 取回归档的原始报表
func (h *BOMHandler) GetLoadArchive(c *gin.Context) {
	loadLog, err := h.logRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "Load not found")
		return
	}
	if h.archiveSvc == nil || loadLog.ArchiveKey == "" {
		NotFound(c, "No archived report for this load")
		return
	}
	raw, err := h.archiveSvc.FetchReport(c.Request.Context(), loadLog.ArchiveKey)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", raw)
}

// ListBOMs GET /boms BOM列表
func (h *BOMHandler) ListBOMs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	boms, total, err := h.bomRepo.List(c.Request.Context(), c.Query("part_no"), c.Query("plant"), page, pageSize)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, ListResponse{
		Items:      boms,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

// GetBOM GET /boms/:id BOM头详情
func (h *BOMHandler) GetBOM(c *gin.Context) {
	bom, err := h.bomRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "BOM not found")
		return
	}
	Success(c, bom)
}

// GetCurrentRevision GET /boms/:id/current 当前修订摘要
func (h *BOMHandler) GetCurrentRevision(c *gin.Context) {
	bom, err := h.bomRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "BOM not found")
		return
	}
	summary, err := h.revisionSvc.CurrentRevisionSummary(c.Request.Context(), bom)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "BOM has no revisions")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, summary)
}

// ListRevisions GET /boms/:id/revisions 修订时间线
func (h *BOMHandler) ListRevisions(c *gin.Context) {
	revs, err := h.bomRepo.ListRevisions(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, revs)
}

// GetRevision GET /boms/:id/revisions/:no 修订详情（含行项）
func (h *BOMHandler) GetRevision(c *gin.Context) {
	no, err := strconv.Atoi(c.Param("no"))
	if err != nil {
		BadRequest(c, "Invalid revision number")
		return
	}
	rev, err := h.bomRepo.FindRevision(c.Request.Context(), c.Param("id"), no)
	if err != nil {
		NotFound(c, "Revision not found")
		return
	}
	Success(c, rev)
}

// DiffRevision GET /boms/:id/revisions/:no/diff?against=N 修订差异
func (h *BOMHandler) DiffRevision(c *gin.Context) {
	no, err := strconv.Atoi(c.Param("no"))
	if err != nil {
		BadRequest(c, "Invalid revision number")
		return
	}
	against, err := strconv.Atoi(c.Query("against"))
	if err != nil {
		BadRequest(c, "Invalid against revision number")
		return
	}

	diff, err := h.revisionSvc.CompareRevisions(c.Request.Context(), c.Param("id"), against, no)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, err.Error())
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, diff)
}

// ExportRevision GET /boms/:id/revisions/:no/export 修订xlsx导出
func (h *BOMHandler) ExportRevision(c *gin.Context) {
	no, err := strconv.Atoi(c.Param("no"))
	if err != nil {
		BadRequest(c, "Invalid revision number")
		return
	}
	f, filename, err := h.exportSvc.ExportRevision(c.Request.Context(), c.Param("id"), no)
	if err != nil {
		NotFound(c, err.Error())
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
