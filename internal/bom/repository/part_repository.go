package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PartRepository struct {
	db *gorm.DB
}

func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

func (r *PartRepository) DB() *gorm.DB {
	return r.db
}

// FindByNo 按料号查找物料
func (r *PartRepository) FindByNo(ctx context.Context, partNo string) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).First(&part, "part_no = ?", partNo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// FindByID 按ID查找物料
func (r *PartRepository) FindByID(ctx context.Context, id string) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).First(&part, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// GetOrCreateTx 按料号取或建物料；已存在且描述有更新时顺带刷新描述。
// 必须在导入事务内使用，tx 为事务句柄。
func (r *PartRepository) GetOrCreateTx(ctx context.Context, tx *gorm.DB, partNo, description string) (*entity.Part, error) {
	var part entity.Part
	err := tx.WithContext(ctx).First(&part, "part_no = ?", partNo).Error
	if err == nil {
		if description != "" && description != part.Description {
			part.Description = description
			part.UpdatedAt = time.Now()
			if err := tx.WithContext(ctx).Model(&part).
				Updates(map[string]interface{}{"description": part.Description, "updated_at": part.UpdatedAt}).Error; err != nil {
				return nil, err
			}
		}
		return &part, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	part = entity.Part{
		ID:          uuid.New().String()[:32],
		PartNo:      partNo,
		Description: description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := tx.WithContext(ctx).Create(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

// List 物料分页列表（料号/描述模糊匹配）
func (r *PartRepository) List(ctx context.Context, keyword string, page, pageSize int) ([]entity.Part, int64, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	query := r.db.WithContext(ctx).Model(&entity.Part{})
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("part_no ILIKE ? OR description ILIKE ?", like, like)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var parts []entity.Part
	err := query.Order("part_no ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&parts).Error
	return parts, total, err
}
