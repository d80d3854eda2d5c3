package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

func (r *BOMRepository) DB() *gorm.DB {
	return r.db
}

// FindByID 按ID查找BOM头
func (r *BOMRepository) FindByID(ctx context.Context, id string) (*entity.BOM, error) {
	var bom entity.BOM
	err := r.db.WithContext(ctx).Preload("Part").First(&bom, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bom, nil
}

// FindByKeyTx 在事务内按业务键加行锁查找BOM头。
// FOR UPDATE 锁保证同一BOM键的导入串行执行。
func (r *BOMRepository) FindByKeyTx(ctx context.Context, tx *gorm.DB, partID, plant, usage, alternative string) (*entity.BOM, error) {
	var bom entity.BOM
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&bom, "part_id = ? AND plant = ? AND usage = ? AND alternative = ?", partID, plant, usage, alternative).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bom, nil
}

// List BOM分页列表（按父项料号过滤）
func (r *BOMRepository) List(ctx context.Context, partNo, plant string, page, pageSize int) ([]entity.BOM, int64, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	query := r.db.WithContext(ctx).Model(&entity.BOM{}).
		Joins("LEFT JOIN parts ON parts.id = boms.part_id")
	if partNo != "" {
		query = query.Where("parts.part_no ILIKE ?", "%"+partNo+"%")
	}
	if plant != "" {
		query = query.Where("boms.plant = ?", plant)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var boms []entity.BOM
	err := query.Preload("Part").
		Order("boms.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&boms).Error
	return boms, total, err
}

// CurrentRevisionTx 在事务内取当前生效修订（effective_to为空的那条）
func (r *BOMRepository) CurrentRevisionTx(ctx context.Context, tx *gorm.DB, bomID string) (*entity.BOMRevision, error) {
	var rev entity.BOMRevision
	err := tx.WithContext(ctx).
		First(&rev, "bom_id = ? AND effective_to IS NULL", bomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// ListRevisions 按修订号升序取BOM全部修订
func (r *BOMRepository) ListRevisions(ctx context.Context, bomID string) ([]entity.BOMRevision, error) {
	var revs []entity.BOMRevision
	err := r.db.WithContext(ctx).
		Where("bom_id = ?", bomID).
		Order("revision_no ASC").
		Find(&revs).Error
	return revs, err
}

// FindRevision 按修订号取修订（含行项与组件物料）
func (r *BOMRepository) FindRevision(ctx context.Context, bomID string, revisionNo int) (*entity.BOMRevision, error) {
	var rev entity.BOMRevision
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("item_no ASC") }).
		Preload("Items.Component").
		First(&rev, "bom_id = ? AND revision_no = ?", bomID, revisionNo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// ListItems 取修订全部行项
func (r *BOMRepository) ListItems(ctx context.Context, revisionID string) ([]entity.BOMItem, error) {
	var items []entity.BOMItem
	err := r.db.WithContext(ctx).
		Preload("Component").
		Where("revision_id = ?", revisionID).
		Order("item_no ASC").
		Find(&items).Error
	return items, err
}
