package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
)

// RevisionDiff 两个修订之间的结构差异
type RevisionDiff struct {
	RevisionA int              `json:"revision_a"`
	RevisionB int              `json:"revision_b"`
	Added     []entity.BOMItem `json:"added"`
	Removed   []entity.BOMItem `json:"removed"`
	Changed   []ItemChange     `json:"changed"`
}

// ItemChange 同一组件在两个修订间的字段变化
type ItemChange struct {
	Before entity.BOMItem `json:"before"`
	After  entity.BOMItem `json:"after"`
}

// CompareRevisions 按组件对齐比较两个修订。
// B 中新出现的组件计入 Added，A 中消失的计入 Removed，
// 两边都有但任一字段不同的计入 Changed。
func (s *RevisionService) CompareRevisions(ctx context.Context, bomID string, revA, revB int) (*RevisionDiff, error) {
	a, err := s.bomRepo.FindRevision(ctx, bomID, revA)
	if err != nil {
		return nil, fmt.Errorf("revision %d: %w", revA, err)
	}
	b, err := s.bomRepo.FindRevision(ctx, bomID, revB)
	if err != nil {
		return nil, fmt.Errorf("revision %d: %w", revB, err)
	}

	diff := &RevisionDiff{RevisionA: revA, RevisionB: revB}

	aByComponent := make(map[string]entity.BOMItem, len(a.Items))
	for _, item := range a.Items {
		aByComponent[item.ComponentID] = item
	}
	bByComponent := make(map[string]entity.BOMItem, len(b.Items))
	for _, item := range b.Items {
		bByComponent[item.ComponentID] = item
	}

	for _, item := range b.Items {
		prev, ok := aByComponent[item.ComponentID]
		if !ok {
			diff.Added = append(diff.Added, item)
			continue
		}
		if itemDiffers(prev, item) {
			diff.Changed = append(diff.Changed, ItemChange{Before: prev, After: item})
		}
	}
	for _, item := range a.Items {
		if _, ok := bByComponent[item.ComponentID]; !ok {
			diff.Removed = append(diff.Removed, item)
		}
	}
	return diff, nil
}

func itemDiffers(a, b entity.BOMItem) bool {
	return a.Quantity != b.Quantity ||
		a.Unit != b.Unit ||
		a.ItemNo != b.ItemNo ||
		a.Origin != b.Origin ||
		a.CommodityCode != b.CommodityCode
}
