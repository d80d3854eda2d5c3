package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LoadResult BOM导入结果。业务失败也通过结果返回，不抛错误。
type LoadResult struct {
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	Unchanged           bool   `json:"unchanged"`
	PriorRevisionClosed bool   `json:"prior_revision_closed"`
	NewRevisionCreated  bool   `json:"new_revision_created"`
	RevisionNo          int    `json:"revision_no,omitempty"`
	ItemsInserted       int    `json:"items_inserted"`
}

// DuplicateComponentError 同一修订内组件重复（调用方数据质量问题，非系统故障）
type DuplicateComponentError struct {
	PartNo string
}

func (e *DuplicateComponentError) Error() string {
	if e.PartNo == "" {
		return "duplicate component in revision"
	}
	return fmt.Sprintf("duplicate component %q in revision", e.PartNo)
}

type RevisionService struct {
	db       *gorm.DB
	partRepo *repository.PartRepository
	bomRepo  *repository.BOMRepository
	logRepo  *repository.LoadLogRepository
	archive  *ArchiveService
	rdb      *redis.Client
	logger   *zap.Logger

	// 可注入时钟，测试用
	now func() time.Time
}

func NewRevisionService(repos *repository.Repositories, archive *ArchiveService, rdb *redis.Client, logger *zap.Logger) *RevisionService {
	return &RevisionService{
		db:       repos.BOM.DB(),
		partRepo: repos.Part,
		bomRepo:  repos.BOM,
		logRepo:  repos.LoadLog,
		archive:  archive,
		rdb:      rdb,
		logger:   logger,
		now:      time.Now,
	}
}

// today 当前日期（按天截断，UTC）
func (s *RevisionService) today() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LoadFromReport 解析导出报表并导入。报表不可解析时返回失败结果，不中断批处理。
func (s *RevisionService) LoadFromReport(ctx context.Context, r io.Reader, encoding, loadedBy string) *LoadResult {
	buf, err := io.ReadAll(DecodeReportReader(r, encoding))
	if err != nil {
		return &LoadResult{Success: false, Message: fmt.Sprintf("read report: %v", err)}
	}

	req, ok := ParseExportReport(bytes.NewReader(buf))
	if !ok {
		return &LoadResult{Success: false, Message: "report not parseable"}
	}
	req.Source = entity.SourceAutoIngest

	archiveKey := ""
	if s.archive != nil {
		key, archiveErr := s.archive.StoreReport(ctx, req.PartNo, buf)
		if archiveErr != nil {
			s.logger.Warn("archive report failed", zap.String("part_no", req.PartNo), zap.Error(archiveErr))
		} else {
			archiveKey = key
		}
	}

	return s.loadBOM(ctx, req, loadedBy, archiveKey)
}

// LoadBOM 导入一个结构化BOM快照
func (s *RevisionService) LoadBOM(ctx context.Context, req *LoadRequest, loadedBy string) *LoadResult {
	return s.loadBOM(ctx, req, loadedBy, "")
}

func (s *RevisionService) loadBOM(ctx context.Context, req *LoadRequest, loadedBy, archiveKey string) *LoadResult {
	// 必填标识在事务开始前校验
	if req.PartNo == "" {
		return s.finishLoad(ctx, req, loadedBy, archiveKey, &LoadResult{Success: false, Message: "parent part number is required"})
	}
	if req.Plant == "" || req.Usage == "" || req.Alternative == "" {
		return s.finishLoad(ctx, req, loadedBy, archiveKey, &LoadResult{Success: false, Message: "plant/usage/alternative is required"})
	}
	if req.Source == "" {
		req.Source = entity.SourceManualLoad
	}

	res := &LoadResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 解析或创建父项物料
		parent, err := s.partRepo.GetOrCreateTx(ctx, tx, req.PartNo, req.Description)
		if err != nil {
			return fmt.Errorf("resolve parent part: %w", err)
		}

		// 2. 解析或创建全部组件物料，建立料号→物料映射
		partByNo := make(map[string]*entity.Part, len(req.Components))
		for _, c := range req.Components {
			if _, ok := partByNo[c.PartNo]; ok {
				continue
			}
			part, err := s.partRepo.GetOrCreateTx(ctx, tx, c.PartNo, c.Description)
			if err != nil {
				return fmt.Errorf("resolve component part %s: %w", c.PartNo, err)
			}
			partByNo[c.PartNo] = part
		}

		// 3. 解析或创建BOM头。行锁串行化同一BOM键的并发导入。
		bom, err := s.resolveBOMTx(ctx, tx, parent.ID, req)
		if err != nil {
			return err
		}

		// 4. 组装已绑定物料的组件列表并计算内容指纹
		resolved := make([]ResolvedComponent, 0, len(req.Components))
		seen := make(map[string]bool, len(req.Components))
		for _, c := range req.Components {
			componentID := partByNo[c.PartNo].ID
			if seen[componentID] {
				return &DuplicateComponentError{PartNo: c.PartNo}
			}
			seen[componentID] = true
			resolved = append(resolved, ResolvedComponent{
				ComponentID:   componentID,
				ItemNo:        c.ItemNo,
				Quantity:      c.Quantity,
				Unit:          c.Unit,
				Origin:        c.Origin,
				CommodityCode: c.CommodityCode,
			})
		}
		hash := ComputeFingerprint(resolved)

		// 5. 与当前生效修订比较，决定首建/不变/关旧开新
		current, err := s.bomRepo.CurrentRevisionTx(ctx, tx, bom.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("fetch current revision: %w", err)
		}

		switch {
		case current == nil:
			rev, err := s.createRevisionTx(ctx, tx, bom.ID, 1, s.today(), hash, req.Source, resolved)
			if err != nil {
				return err
			}
			*res = LoadResult{
				Success:            true,
				Message:            "first revision created",
				NewRevisionCreated: true,
				RevisionNo:         rev.RevisionNo,
				ItemsInserted:      len(resolved),
			}

		case current.ContentHash == hash:
			*res = LoadResult{
				Success:    true,
				Message:    "content unchanged",
				Unchanged:  true,
				RevisionNo: current.RevisionNo,
			}

		default:
			// 关闭日期必须严格晚于生效日期；同日再次变更时顺延一天
			closeDate := s.today()
			if !closeDate.After(current.EffectiveFrom) {
				closeDate = current.EffectiveFrom.AddDate(0, 0, 1)
			}
			if err := tx.WithContext(ctx).Model(&entity.BOMRevision{}).
				Where("id = ?", current.ID).
				Update("effective_to", closeDate).Error; err != nil {
				return fmt.Errorf("close revision %d: %w", current.RevisionNo, err)
			}
			rev, err := s.createRevisionTx(ctx, tx, bom.ID, current.RevisionNo+1, closeDate, hash, req.Source, resolved)
			if err != nil {
				return err
			}
			*res = LoadResult{
				Success:             true,
				Message:             fmt.Sprintf("revision %d closed, revision %d created", current.RevisionNo, rev.RevisionNo),
				PriorRevisionClosed: true,
				NewRevisionCreated:  true,
				RevisionNo:          rev.RevisionNo,
				ItemsInserted:       len(resolved),
			}
		}
		return nil
	})

	if err != nil {
		var dup *DuplicateComponentError
		if errors.As(err, &dup) {
			res = &LoadResult{Success: false, Message: dup.Error()}
		} else {
			res = &LoadResult{Success: false, Message: fmt.Sprintf("load failed: %v", err)}
		}
		s.logger.Warn("bom load failed",
			zap.String("part_no", req.PartNo),
			zap.String("plant", req.Plant),
			zap.Error(err))
	} else {
		s.logger.Info("bom load",
			zap.String("part_no", req.PartNo),
			zap.String("plant", req.Plant),
			zap.Bool("unchanged", res.Unchanged),
			zap.Int("revision_no", res.RevisionNo),
			zap.Int("items", res.ItemsInserted))
		s.invalidateCurrentCache(ctx, req)
	}

	return s.finishLoad(ctx, req, loadedBy, archiveKey, res)
}

// resolveBOMTx 取或建BOM头。头表数量是元数据不做版本化，重导时用最新值覆盖。
func (s *RevisionService) resolveBOMTx(ctx context.Context, tx *gorm.DB, partID string, req *LoadRequest) (*entity.BOM, error) {
	bom, err := s.bomRepo.FindByKeyTx(ctx, tx, partID, req.Plant, req.Usage, req.Alternative)
	if errors.Is(err, repository.ErrNotFound) {
		bom = &entity.BOM{
			ID:          uuid.New().String()[:32],
			PartID:      partID,
			Plant:       req.Plant,
			Usage:       req.Usage,
			Alternative: req.Alternative,
			BaseQty:     req.BaseQty,
			ReqdQty:     req.ReqdQty,
			BaseUnit:    req.BaseUnit,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := tx.WithContext(ctx).Create(bom).Error; err != nil {
			return nil, fmt.Errorf("create bom header: %w", err)
		}
		return bom, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve bom header: %w", err)
	}

	updates := map[string]interface{}{}
	if req.BaseQty != nil {
		updates["base_qty"] = *req.BaseQty
	}
	if req.ReqdQty != nil {
		updates["reqd_qty"] = *req.ReqdQty
	}
	if req.BaseUnit != "" {
		updates["base_unit"] = req.BaseUnit
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := tx.WithContext(ctx).Model(bom).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update bom header: %w", err)
		}
	}
	return bom, nil
}

// createRevisionTx 创建修订并批量写入行项
func (s *RevisionService) createRevisionTx(ctx context.Context, tx *gorm.DB, bomID string, revisionNo int, effectiveFrom time.Time, hash, source string, components []ResolvedComponent) (*entity.BOMRevision, error) {
	rev := &entity.BOMRevision{
		ID:            uuid.New().String()[:32],
		BOMID:         bomID,
		RevisionNo:    revisionNo,
		EffectiveFrom: effectiveFrom,
		ContentHash:   hash,
		Source:        source,
		CreatedAt:     time.Now(),
	}
	if err := tx.WithContext(ctx).Create(rev).Error; err != nil {
		return nil, fmt.Errorf("create revision %d: %w", revisionNo, err)
	}

	if len(components) == 0 {
		return rev, nil
	}
	items := make([]entity.BOMItem, 0, len(components))
	for _, c := range components {
		items = append(items, entity.BOMItem{
			ID:            uuid.New().String()[:32],
			RevisionID:    rev.ID,
			ComponentID:   c.ComponentID,
			ItemNo:        c.ItemNo,
			Quantity:      c.Quantity,
			Unit:          c.Unit,
			Origin:        c.Origin,
			CommodityCode: c.CommodityCode,
			CreatedAt:     time.Now(),
		})
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		// 行项上的唯一键冲突就是“同一修订内组件重复”。
		// 其他插入点（BOM键、料号）的唯一键冲突不归入这个分类。
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &DuplicateComponentError{}
		}
		return nil, fmt.Errorf("insert revision items: %w", err)
	}
	return rev, nil
}

// finishLoad 写导入日志（失败的导入也留痕），返回最终结果
func (s *RevisionService) finishLoad(ctx context.Context, req *LoadRequest, loadedBy, archiveKey string, res *LoadResult) *LoadResult {
	outcome := entity.LoadOutcomeFailed
	switch {
	case res.Success && res.Unchanged:
		outcome = entity.LoadOutcomeUnchanged
	case res.Success && res.PriorRevisionClosed:
		outcome = entity.LoadOutcomeNewRevision
	case res.Success:
		outcome = entity.LoadOutcomeFirstRevision
	}

	log := &entity.BOMLoadLog{
		ID:          uuid.New().String()[:32],
		PartNo:      req.PartNo,
		Plant:       req.Plant,
		Usage:       req.Usage,
		Alternative: req.Alternative,
		Outcome:     outcome,
		Message:     res.Message,
		ItemCount:   res.ItemsInserted,
		ArchiveKey:  archiveKey,
		CreatedBy:   loadedBy,
		CreatedAt:   time.Now(),
	}
	if res.RevisionNo > 0 {
		log.RevisionNo = &res.RevisionNo
	}
	if err := s.logRepo.Create(ctx, log); err != nil {
		s.logger.Warn("write load log failed", zap.String("part_no", req.PartNo), zap.Error(err))
	}
	return res
}

// currentCacheKey 当前修订摘要的缓存键
func currentCacheKey(partNo, plant, usage, alternative string) string {
	return fmt.Sprintf("bom:current:%s:%s:%s:%s", partNo, plant, usage, alternative)
}

func (s *RevisionService) invalidateCurrentCache(ctx context.Context, req *LoadRequest) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, currentCacheKey(req.PartNo, req.Plant, req.Usage, req.Alternative)).Err(); err != nil {
		s.logger.Warn("invalidate current revision cache failed", zap.Error(err))
	}
}

// RevisionSummary 当前修订摘要（读路径缓存对象）
type RevisionSummary struct {
	BOMID         string     `json:"bom_id"`
	RevisionNo    int        `json:"revision_no"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	ContentHash   string     `json:"content_hash"`
	ItemCount     int        `json:"item_count"`
}

// CurrentRevisionSummary 查询BOM当前修订摘要，经redis读缓存，导入成功时失效
func (s *RevisionService) CurrentRevisionSummary(ctx context.Context, bom *entity.BOM) (*RevisionSummary, error) {
	var key string
	if s.rdb != nil && bom.Part != nil {
		key = currentCacheKey(bom.Part.PartNo, bom.Plant, bom.Usage, bom.Alternative)
		if cached, err := s.rdb.Get(ctx, key).Result(); err == nil {
			var summary RevisionSummary
			if json.Unmarshal([]byte(cached), &summary) == nil {
				return &summary, nil
			}
		}
	}

	revs, err := s.bomRepo.ListRevisions(ctx, bom.ID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	var current *entity.BOMRevision
	for i := range revs {
		if revs[i].IsCurrent() {
			current = &revs[i]
			break
		}
	}
	if current == nil {
		return nil, repository.ErrNotFound
	}
	items, err := s.bomRepo.ListItems(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	summary := &RevisionSummary{
		BOMID:         bom.ID,
		RevisionNo:    current.RevisionNo,
		EffectiveFrom: current.EffectiveFrom,
		EffectiveTo:   current.EffectiveTo,
		ContentHash:   current.ContentHash,
		ItemCount:     len(items),
	}
	if s.rdb != nil && key != "" {
		if raw, err := json.Marshal(summary); err == nil {
			s.rdb.Set(ctx, key, raw, 10*time.Minute)
		}
	}
	return summary, nil
}
