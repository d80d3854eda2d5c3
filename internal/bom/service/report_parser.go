package service

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// LoadRequest 结构化的BOM导入请求（报表解析产物，也可由调用方直接构造）
type LoadRequest struct {
	PartNo      string           `json:"part_no" binding:"required"`
	Description string           `json:"description"`
	Plant       string           `json:"plant" binding:"required"`
	Usage       string           `json:"usage" binding:"required"`
	Alternative string           `json:"alternative" binding:"required"`
	BaseQty     *float64         `json:"base_qty"`
	ReqdQty     *float64         `json:"reqd_qty"`
	BaseUnit    string           `json:"base_unit"`
	Source      string           `json:"source"`
	Components  []ComponentEntry `json:"components"`
}

// ComponentEntry 导入请求中的一条组件行
type ComponentEntry struct {
	PartNo        string  `json:"part_no" binding:"required"`
	Description   string  `json:"description"`
	Quantity      float64 `json:"quantity" binding:"min=0"`
	Unit          string  `json:"unit"`
	Origin        string  `json:"origin"`
	ItemNo        string  `json:"item_no"`
	CommodityCode string  `json:"commodity_code"`
}

const (
	// 报表最少行数：前两行保留 + 表头块
	minReportLines = 5
	// 表头字段扫描窗口（第3~7行）
	headerScanStart = 2
	headerScanEnd   = 7
	// 表头块之后查找组件表头行的窗口
	tableScanWindow = 10
)

// DecodeReportReader 报表上传解码。导出报表常见 Latin-1 编码，按需转 UTF-8。
func DecodeReportReader(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "latin1", "iso-8859-1", "iso8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	default:
		return r
	}
}

// ParseExportReport 解析BOM导出报表文本。
// 返回 (nil, false) 表示文件不可解析，属预期运营情况，不作为错误处理。
// 组件表缺失时返回空组件列表的有效结果（无组件的BOM头是合法的）。
func ParseExportReport(r io.Reader) (*LoadRequest, bool) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if scanner.Err() != nil || len(lines) < minReportLines {
		return nil, false
	}

	req := &LoadRequest{}

	// 前两行保留，表头字段在固定窗口内按标签定位
	end := headerScanEnd
	if end > len(lines) {
		end = len(lines)
	}
	for _, line := range lines[headerScanStart:end] {
		parseHeaderField(line, req)
	}

	// 父项料号缺失则整个报表不可解析
	if req.PartNo == "" {
		return nil, false
	}

	// 在表头块之后的窗口内定位组件表头行
	tableStart := -1
	scanEnd := end + tableScanWindow
	if scanEnd > len(lines) {
		scanEnd = len(lines)
	}
	var cols tableColumns
	for i := end; i < scanEnd; i++ {
		if c, ok := resolveTableColumns(lines[i]); ok {
			cols = c
			tableStart = i + 1
			break
		}
	}
	// 找不到组件表也是有效结果：该BOM没有记录组件
	if tableStart < 0 {
		return req, true
	}

	for _, line := range lines[tableStart:] {
		if entry, ok := parseTableRow(line, cols); ok {
			req.Components = append(req.Components, entry)
		}
	}
	return req, true
}

// parseHeaderField 识别表头块中的标签字段，标签不匹配则忽略该行
func parseHeaderField(line string, req *LoadRequest) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "Plant/Usage/Alt."):
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "Plant/Usage/Alt."))
		parts := strings.Split(rest, "/")
		if len(parts) == 3 {
			req.Plant = strings.TrimSpace(parts[0])
			req.Usage = strings.TrimSpace(parts[1])
			req.Alternative = strings.TrimSpace(parts[2])
		}
	case strings.HasPrefix(trimmed, "Material"):
		req.PartNo = strings.TrimSpace(strings.TrimPrefix(trimmed, "Material"))
	case strings.HasPrefix(trimmed, "Description"):
		req.Description = strings.TrimSpace(strings.TrimPrefix(trimmed, "Description"))
	case strings.HasPrefix(trimmed, "Base Qty"):
		unit, qty, ok := parseQtyField(strings.TrimPrefix(trimmed, "Base Qty"))
		if ok {
			req.BaseQty = &qty
			req.BaseUnit = unit
		}
	case strings.HasPrefix(trimmed, "Reqd Qty"):
		unit, qty, ok := parseQtyField(strings.TrimPrefix(trimmed, "Reqd Qty"))
		if ok {
			req.ReqdQty = &qty
			if req.BaseUnit == "" {
				req.BaseUnit = unit
			}
		}
	}
}

// parseQtyField 解析 `(<unit>) <european-number>` 形式的数量字段。
// 数值解析失败按值缺失处理。
func parseQtyField(s string) (unit string, qty float64, ok bool) {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "(")
	closing := strings.Index(s, ")")
	if open < 0 || closing < open {
		return "", 0, false
	}
	unit = strings.TrimSpace(s[open+1 : closing])
	d, ok := parseEuropeanNumber(s[closing+1:])
	if !ok {
		return "", 0, false
	}
	return unit, d.InexactFloat64(), true
}

// tableColumns 组件表各列的位置（按表头标签解析，-1 表示该列不存在）
type tableColumns struct {
	objectID    int
	description int
	itemNo      int
	unit        int
	quantity    int
	origin      int
	commodity   int
}

// resolveTableColumns 识别组件表头行并按规整标签建立列位置映射。
// 同一标签出现多列时数量/单位取最后一列：靠右的列才是组件级的值，
// 靠左同名列是表头级数量（源报表格式的既有怪癖，保持原样）。
func resolveTableColumns(line string) (tableColumns, bool) {
	if !strings.Contains(line, "|") {
		return tableColumns{}, false
	}
	cols := tableColumns{objectID: -1, description: -1, itemNo: -1, unit: -1, quantity: -1, origin: -1, commodity: -1}
	cells := strings.Split(line, "|")
	for i, cell := range cells {
		switch normalizeLabel(cell) {
		case "object id":
			if cols.objectID < 0 {
				cols.objectID = i
			}
		case "object description", "description":
			if cols.description < 0 {
				cols.description = i
			}
		case "item", "item no":
			if cols.itemNo < 0 {
				cols.itemNo = i
			}
		case "un", "unit":
			cols.unit = i
		case "qty", "quantity":
			cols.quantity = i
		case "origin", "ctry of origin":
			cols.origin = i
		case "commodity code", "comm code":
			cols.commodity = i
		}
	}
	// 组件表头必须同时含对象标识列和组件列标记
	if cols.objectID < 0 || !strings.Contains(strings.ToLower(line), "component") {
		return tableColumns{}, false
	}
	return cols, true
}

// parseTableRow 解析一行组件数据。
// 空行、非表格行、分隔线、无对象标识的行全部跳过；
// 数量缺失或不可解析的行保留，数量置零，由下游校验决定是否接受。
func parseTableRow(line string, cols tableColumns) (ComponentEntry, bool) {
	if strings.TrimSpace(line) == "" {
		return ComponentEntry{}, false
	}
	if !strings.HasPrefix(strings.TrimSpace(line), "|") {
		return ComponentEntry{}, false
	}
	if strings.Trim(line, "-|+= \t") == "" {
		return ComponentEntry{}, false
	}

	cells := strings.Split(line, "|")
	cell := func(idx int) string {
		if idx < 0 || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	entry := ComponentEntry{
		PartNo:        cell(cols.objectID),
		Description:   cell(cols.description),
		ItemNo:        cell(cols.itemNo),
		Unit:          cell(cols.unit),
		Origin:        cell(cols.origin),
		CommodityCode: cell(cols.commodity),
	}
	if entry.PartNo == "" {
		return ComponentEntry{}, false
	}
	if d, ok := parseEuropeanNumber(cell(cols.quantity)); ok {
		entry.Quantity = d.InexactFloat64()
	}
	return entry, true
}
