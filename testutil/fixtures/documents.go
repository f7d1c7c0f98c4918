// Package fixtures 提供检索测试共用的样例文档与图数据。
package fixtures

// 样例文档正文，键为文档 ID
const (
	FoxText     = "The quick brown fox jumps over the lazy dog."
	InvoiceText = "Invoice INV-7 total amount due 1200 EUR for steel bolts."
	SOPText     = "Step 1: inspect returned goods. Step 2: log the return."
	WeatherText = "Heavy rain is expected across the region tomorrow."
)

// ReturnsMarkdown 带二级标题的退货流程文档，用于层级分块
const ReturnsMarkdown = "# Returns\n\nInspect the goods.\n\n## Refunds\n\nRefund within 14 days.\n"

// Corpus 返回混合业务语料的新副本
func Corpus() map[string]string {
	return map[string]string{
		"fox":     FoxText,
		"invoice": InvoiceText,
		"sop":     SOPText,
		"weather": WeatherText,
	}
}
