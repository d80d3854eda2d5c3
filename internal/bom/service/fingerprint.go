package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// ResolvedComponent 已绑定物料ID的组件行，指纹计算的输入
type ResolvedComponent struct {
	ComponentID   string
	ItemNo        string
	Quantity      float64
	Unit          string
	Origin        string
	CommodityCode string
}

// fingerprintEntry 指纹规范化条目。字段顺序固定，序列化时不得重排。
type fingerprintEntry struct {
	Component string `json:"component"`
	ItemNo    string `json:"item_no"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit"`
	Commodity string `json:"commodity"`
	Origin    string `json:"origin"`
}

// ComputeFingerprint 计算组件列表的规范化内容指纹。
// 排序键是整个条目元组（全序），项目号和数量都可缺省，
// 仅凭两者排序会让并列条目的顺序跟随输入顺序，指纹就不再与顺序无关了。
// 空列表对规范化空表示取哈希，是一个固定、可测试的特殊值。
func ComputeFingerprint(components []ResolvedComponent) string {
	sorted := make([]ResolvedComponent, len(components))
	copy(sorted, components)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ItemNo != b.ItemNo {
			return a.ItemNo < b.ItemNo
		}
		if a.Quantity != b.Quantity {
			return a.Quantity < b.Quantity
		}
		if a.ComponentID != b.ComponentID {
			return a.ComponentID < b.ComponentID
		}
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		if a.CommodityCode != b.CommodityCode {
			return a.CommodityCode < b.CommodityCode
		}
		return a.Origin < b.Origin
	})

	entries := make([]fingerprintEntry, 0, len(sorted))
	for _, c := range sorted {
		entries = append(entries, fingerprintEntry{
			Component: c.ComponentID,
			ItemNo:    c.ItemNo,
			Quantity:  decimal.NewFromFloat(c.Quantity).String(),
			Unit:      c.Unit,
			Commodity: c.CommodityCode,
			Origin:    c.Origin,
		})
	}

	// encoding/json 按结构体字段声明顺序输出，序列化是确定性的
	raw, _ := json.Marshal(entries)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
