package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"gorm.io/gorm"
)

type LoadLogRepository struct {
	db *gorm.DB
}

func NewLoadLogRepository(db *gorm.DB) *LoadLogRepository {
	return &LoadLogRepository{db: db}
}

// Create 写入导入日志（在导入事务之外提交，失败的导入也要留痕）
func (r *LoadLogRepository) Create(ctx context.Context, log *entity.BOMLoadLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByID 按ID查找导入日志
func (r *LoadLogRepository) FindByID(ctx context.Context, id string) (*entity.BOMLoadLog, error) {
	var log entity.BOMLoadLog
	err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// List 导入日志分页列表
func (r *LoadLogRepository) List(ctx context.Context, partNo, outcome string, page, pageSize int) ([]entity.BOMLoadLog, int64, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	query := r.db.WithContext(ctx).Model(&entity.BOMLoadLog{})
	if partNo != "" {
		query = query.Where("part_no = ?", partNo)
	}
	if outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []entity.BOMLoadLog
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	return logs, total, err
}
