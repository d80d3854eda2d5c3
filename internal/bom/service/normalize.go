package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseEuropeanNumber 解析欧式数字：`.` 为千分位，`,` 为小数点。
// 解析失败返回 ok=false，调用方按“值缺失”处理，不报错。
func parseEuropeanNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// normalizeLabel 规整列标题：小写、去首尾空白、合并内部空白、去尾部句点。
// 表头列按规整后的标题匹配，不依赖列顺序。
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".")
	return strings.Join(strings.Fields(s), " ")
}
