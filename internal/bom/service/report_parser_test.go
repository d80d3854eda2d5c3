package service

import (
	"io"
	"strings"
	"testing"
)

func buildReport(lines []string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\n"))
}

func minimalReportLines() []string {
	return []string{
		"SAP BOM Export",
		"",
		"Material           FG-1000",
		"Plant/Usage/Alt.   US10 / 1 / 01",
		"Description        Widget Assembly",
		"Base Qty      (EA)        1.000,000",
		"Reqd Qty      (EA)            1,000",
		"",
		"| Object ID | Item | Component | Object description | Qty | Un |",
		"|-----------|------|-----------|--------------------|-----|----|",
		"| C-100     | 0010 | X         | First component    | 10,000 | EA |",
		"| C-200     | 0020 | X         | Second component   |        | EA |",
		"|  C-100    | 0030 | X         | Duplicate id       | 5,000  | EA |",
		"|           | 0040 | X         | No object id       | 1,000  | EA |",
		"",
		"End of report",
	}
}

func TestParseExportReportRoundTrip(t *testing.T) {
	req, ok := ParseExportReport(buildReport(minimalReportLines()))
	if !ok {
		t.Fatal("expected report to parse")
	}

	if req.PartNo != "FG-1000" {
		t.Errorf("part no = %q, want FG-1000", req.PartNo)
	}
	if req.Description != "Widget Assembly" {
		t.Errorf("description = %q, want Widget Assembly", req.Description)
	}
	if req.Plant != "US10" || req.Usage != "1" || req.Alternative != "01" {
		t.Errorf("plant/usage/alt = %s/%s/%s, want US10/1/01", req.Plant, req.Usage, req.Alternative)
	}
	if req.BaseQty == nil || *req.BaseQty != 1000 {
		t.Errorf("base qty = %v, want 1000", req.BaseQty)
	}
	if req.ReqdQty == nil || *req.ReqdQty != 1 {
		t.Errorf("reqd qty = %v, want 1", req.ReqdQty)
	}
	if req.BaseUnit != "EA" {
		t.Errorf("base unit = %q, want EA", req.BaseUnit)
	}

	// 合法行 + 数量缺失行 + 仅空白差异的重复行保留；无对象标识的行排除
	if len(req.Components) != 3 {
		t.Fatalf("component count = %d, want 3", len(req.Components))
	}
	if req.Components[0].PartNo != "C-100" || req.Components[0].Quantity != 10 {
		t.Errorf("component 0 = %+v, want C-100 qty 10", req.Components[0])
	}
	if req.Components[0].ItemNo != "0010" || req.Components[0].Unit != "EA" {
		t.Errorf("component 0 item/unit = %s/%s, want 0010/EA", req.Components[0].ItemNo, req.Components[0].Unit)
	}
	if req.Components[0].Description != "First component" {
		t.Errorf("component 0 description = %q", req.Components[0].Description)
	}
	// 数量不可解析的行保留，数量置零
	if req.Components[1].PartNo != "C-200" || req.Components[1].Quantity != 0 {
		t.Errorf("component 1 = %+v, want C-200 qty 0", req.Components[1])
	}
	if req.Components[2].PartNo != "C-100" || req.Components[2].Quantity != 5 {
		t.Errorf("component 2 = %+v, want C-100 qty 5", req.Components[2])
	}
}

func TestParseExportReportColumnOrder(t *testing.T) {
	// 列顺序与默认不同，位置必须按表头标签解析
	lines := []string{
		"SAP BOM Export",
		"",
		"Material  FG-2000",
		"Plant/Usage/Alt.  DE01 / 2 / 02",
		"",
		"",
		"",
		"",
		"| Item | Qty | Un | Object ID | Component | Object description |",
		"| 0010 | 2,500 | KG | RM-55 | X | Raw material |",
	}
	req, ok := ParseExportReport(buildReport(lines))
	if !ok {
		t.Fatal("expected report to parse")
	}
	if len(req.Components) != 1 {
		t.Fatalf("component count = %d, want 1", len(req.Components))
	}
	c := req.Components[0]
	if c.PartNo != "RM-55" || c.ItemNo != "0010" || c.Quantity != 2.5 || c.Unit != "KG" {
		t.Errorf("component = %+v", c)
	}
}

func TestParseExportReportLastQuantityColumnWins(t *testing.T) {
	// 同名数量列取最右边的那列（组件级数量）
	lines := []string{
		"Report",
		"",
		"Material  FG-3000",
		"Plant/Usage/Alt.  US10 / 1 / 01",
		"",
		"",
		"",
		"",
		"| Object ID | Component | Qty | Object description | Qty | Un |",
		"| C-1 | X | 99,000 | Desc | 2,500 | EA |",
	}
	req, ok := ParseExportReport(buildReport(lines))
	if !ok {
		t.Fatal("expected report to parse")
	}
	if len(req.Components) != 1 {
		t.Fatalf("component count = %d, want 1", len(req.Components))
	}
	if req.Components[0].Quantity != 2.5 {
		t.Errorf("quantity = %v, want 2.5 (rightmost column)", req.Components[0].Quantity)
	}
}

func TestParseExportReportNoTable(t *testing.T) {
	// 找不到组件表时返回空组件列表的有效结果
	lines := []string{
		"Report",
		"",
		"Material  FG-4000",
		"Plant/Usage/Alt.  US10 / 1 / 01",
		"Description  Assembly without components",
		"",
		"Nothing else here",
	}
	req, ok := ParseExportReport(buildReport(lines))
	if !ok {
		t.Fatal("expected report to parse")
	}
	if len(req.Components) != 0 {
		t.Errorf("component count = %d, want 0", len(req.Components))
	}
}

func TestParseExportReportUnparseable(t *testing.T) {
	// 行数不足
	if _, ok := ParseExportReport(strings.NewReader("one\ntwo")); ok {
		t.Error("short input should be unparseable")
	}

	// 缺父项料号
	lines := []string{
		"Report",
		"",
		"Plant/Usage/Alt.  US10 / 1 / 01",
		"Description  No material line",
		"",
		"",
	}
	if _, ok := ParseExportReport(buildReport(lines)); ok {
		t.Error("report without parent part number should be unparseable")
	}
}

func TestParseExportReportBadHeaderQty(t *testing.T) {
	// 表头数量解析失败按值缺失处理，不报错
	lines := []string{
		"Report",
		"",
		"Material  FG-5000",
		"Plant/Usage/Alt.  US10 / 1 / 01",
		"Base Qty  (EA)  not-a-number",
		"",
	}
	req, ok := ParseExportReport(buildReport(lines))
	if !ok {
		t.Fatal("expected report to parse")
	}
	if req.BaseQty != nil {
		t.Errorf("base qty = %v, want nil", req.BaseQty)
	}
}

func TestDecodeReportReaderLatin1(t *testing.T) {
	raw := []byte{'M', 0xFC, 'l', 'l', 'e', 'r'}
	decoded, err := io.ReadAll(DecodeReportReader(strings.NewReader(string(raw)), "latin1"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != "Müller" {
		t.Errorf("decoded = %q, want Müller", string(decoded))
	}
}
