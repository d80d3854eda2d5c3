package entity

import "time"

// Part 物料主数据（BOM父项或子件共用的唯一标识）
type Part struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	PartNo      string    `json:"part_no" gorm:"size:64;not null;uniqueIndex"`
	Description string    `json:"description,omitempty" gorm:"size:256"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Part) TableName() string {
	return "parts"
}
