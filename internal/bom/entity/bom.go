package entity

import "time"

// 修订来源
const (
	SourceManualLoad = "manual"
	SourceAutoIngest = "auto"
)

// BOM BOM头表（零件+工厂+用途+可选项 唯一确定一个BOM）
type BOM struct {
	ID          string   `json:"id" gorm:"primaryKey;size:32"`
	PartID      string   `json:"part_id" gorm:"size:32;not null;uniqueIndex:idx_boms_key,priority:1"`
	Plant       string   `json:"plant" gorm:"size:8;not null;uniqueIndex:idx_boms_key,priority:2"`
	Usage       string   `json:"usage" gorm:"size:8;not null;uniqueIndex:idx_boms_key,priority:3"`
	Alternative string   `json:"alternative" gorm:"size:8;not null;uniqueIndex:idx_boms_key,priority:4"`
	BaseQty     *float64 `json:"base_qty,omitempty" gorm:"type:numeric(15,4)"`
	ReqdQty     *float64 `json:"reqd_qty,omitempty" gorm:"type:numeric(15,4)"`
	BaseUnit    string   `json:"base_unit,omitempty" gorm:"size:8"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Part      *Part         `json:"part,omitempty" gorm:"foreignKey:PartID"`
	Revisions []BOMRevision `json:"revisions,omitempty" gorm:"foreignKey:BOMID"`
}

func (BOM) TableName() string {
	return "boms"
}

// BOMRevision BOM结构修订（一个时间区间内不可变的组件结构快照）
// effective_to 为空表示当前生效的修订，每个BOM同时最多只有一条。
type BOMRevision struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	BOMID         string     `json:"bom_id" gorm:"size:32;not null;uniqueIndex:idx_bom_revisions_no,priority:1"`
	RevisionNo    int        `json:"revision_no" gorm:"not null;uniqueIndex:idx_bom_revisions_no,priority:2"`
	EffectiveFrom time.Time  `json:"effective_from" gorm:"type:date;not null"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" gorm:"type:date"`
	ContentHash   string     `json:"content_hash" gorm:"size:64;not null"`
	Source        string     `json:"source" gorm:"size:16;not null;default:manual"`
	CreatedAt     time.Time  `json:"created_at"`

	// Relations
	BOM   *BOM      `json:"bom,omitempty" gorm:"foreignKey:BOMID"`
	Items []BOMItem `json:"items,omitempty" gorm:"foreignKey:RevisionID"`
}

func (BOMRevision) TableName() string {
	return "bom_revisions"
}

// IsCurrent 是否当前生效修订
func (r *BOMRevision) IsCurrent() bool {
	return r.EffectiveTo == nil
}

// BOMItem BOM修订行项（同一修订内组件不可重复）
type BOMItem struct {
	ID            string  `json:"id" gorm:"primaryKey;size:32"`
	RevisionID    string  `json:"revision_id" gorm:"size:32;not null;uniqueIndex:idx_bom_items_component,priority:1"`
	ComponentID   string  `json:"component_id" gorm:"size:32;not null;uniqueIndex:idx_bom_items_component,priority:2"`
	ItemNo        string  `json:"item_no,omitempty" gorm:"size:16"`
	Quantity      float64 `json:"quantity" gorm:"type:numeric(15,4);not null;default:0"`
	Unit          string  `json:"unit,omitempty" gorm:"size:8"`
	Origin        string  `json:"origin,omitempty" gorm:"size:8"`
	CommodityCode string  `json:"commodity_code,omitempty" gorm:"size:16"`
	CreatedAt     time.Time `json:"created_at"`

	// Relations
	Revision  *BOMRevision `json:"revision,omitempty" gorm:"foreignKey:RevisionID"`
	Component *Part        `json:"component,omitempty" gorm:"foreignKey:ComponentID"`
}

func (BOMItem) TableName() string {
	return "bom_items"
}
