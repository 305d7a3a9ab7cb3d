package models

// GenerateReportRequest 单个群组报告生成请求
type GenerateReportRequest struct {
	GroupID   string `json:"group_id" binding:"required"`
	YearMonth string `json:"year_month" binding:"required"` // YYYY-MM
}

// GenerateAllReportsRequest 批量生成请求，YearMonth为空时默认生成上个月
type GenerateAllReportsRequest struct {
	YearMonth string `json:"year_month"`
}
