package entity

import "time"

// 导入结果
const (
	LoadOutcomeFirstRevision = "first_revision"
	LoadOutcomeNewRevision   = "new_revision"
	LoadOutcomeUnchanged     = "unchanged"
	LoadOutcomeFailed        = "failed"
)

// BOMLoadLog BOM导入日志（每次导入一条，含原始报表归档key）
type BOMLoadLog struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	PartNo      string    `json:"part_no" gorm:"size:64;not null;index"`
	Plant       string    `json:"plant" gorm:"size:8;not null"`
	Usage       string    `json:"usage" gorm:"size:8;not null"`
	Alternative string    `json:"alternative" gorm:"size:8;not null"`
	Outcome     string    `json:"outcome" gorm:"size:16;not null"`
	Message     string    `json:"message,omitempty" gorm:"type:text"`
	RevisionNo  *int      `json:"revision_no,omitempty"`
	ItemCount   int       `json:"item_count" gorm:"default:0"`
	ArchiveKey  string    `json:"archive_key,omitempty" gorm:"size:256"`
	CreatedBy   string    `json:"created_by,omitempty" gorm:"size:32"`
	CreatedAt   time.Time `json:"created_at"`
}

func (BOMLoadLog) TableName() string {
	return "bom_load_logs"
}
