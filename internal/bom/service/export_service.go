package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/xuri/excelize/v2"
)

var revisionExportHeaders = []string{
	"Item", "Component", "Description", "Quantity", "Unit", "Origin", "Commodity Code",
}

// ExportService 修订快照xlsx导出
type ExportService struct {
	bomRepo *repository.BOMRepository
}

func NewExportService(bomRepo *repository.BOMRepository) *ExportService {
	return &ExportService{bomRepo: bomRepo}
}

// ExportRevision 导出指定修订的组件清单，返回工作簿和建议文件名
func (s *ExportService) ExportRevision(ctx context.Context, bomID string, revisionNo int) (*excelize.File, string, error) {
	bom, err := s.bomRepo.FindByID(ctx, bomID)
	if err != nil {
		return nil, "", fmt.Errorf("bom not found: %w", err)
	}
	rev, err := s.bomRepo.FindRevision(ctx, bomID, revisionNo)
	if err != nil {
		return nil, "", fmt.Errorf("revision not found: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Revision"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})

	// 抬头信息
	partNo := ""
	if bom.Part != nil {
		partNo = bom.Part.PartNo
	}
	f.SetCellValue(sheet, "A1", "Material")
	f.SetCellValue(sheet, "B1", partNo)
	f.SetCellValue(sheet, "A2", "Plant/Usage/Alt.")
	f.SetCellValue(sheet, "B2", fmt.Sprintf("%s / %s / %s", bom.Plant, bom.Usage, bom.Alternative))
	f.SetCellValue(sheet, "A3", "Revision")
	f.SetCellValue(sheet, "B3", rev.RevisionNo)
	f.SetCellValue(sheet, "A4", "Effective From")
	f.SetCellValue(sheet, "B4", rev.EffectiveFrom.Format("2006-01-02"))
	if rev.EffectiveTo != nil {
		f.SetCellValue(sheet, "A5", "Effective To")
		f.SetCellValue(sheet, "B5", rev.EffectiveTo.Format("2006-01-02"))
	}

	const tableStart = 7
	for i, h := range revisionExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, tableStart)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	colWidths := []float64{10, 20, 36, 12, 8, 8, 16}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	for i, item := range rev.Items {
		row := tableStart + 1 + i
		componentNo := ""
		description := ""
		if item.Component != nil {
			componentNo = item.Component.PartNo
			description = item.Component.Description
		}
		values := []interface{}{
			item.ItemNo, componentNo, description, item.Quantity, item.Unit, item.Origin, item.CommodityCode,
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
		}
	}

	filename := fmt.Sprintf("BOM_%s_%s_rev%d.xlsx", partNo, bom.Plant, rev.RevisionNo)
	return f, filename, nil
}
