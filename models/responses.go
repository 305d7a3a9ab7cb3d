package models

// MetricSummary 单项指标与前月比
type MetricSummary struct {
	Count            int     `json:"count"`
	ChangePercentage float64 `json:"change_percentage"`
}

// MonthlyReportView 报告展示用结构
type MonthlyReportView struct {
	ReportID    string `json:"report_id"`
	ReportMonth string `json:"report_month"` // YYYY-MM
	GeneratedAt string `json:"generated_at"`
	AIComment   string `json:"ai_comment"`

	NormalTasks MetricSummary `json:"normal_tasks"`
	GroupTasks  MetricSummary `json:"group_tasks"`
	Rewards     MetricSummary `json:"rewards"`

	MemberDetails    []MemberTaskSummary    `json:"member_details"`
	GroupTaskDetails []GroupTaskDetail      `json:"group_task_details"`
	GroupTaskSummary []GroupTaskUserSummary `json:"group_task_summary"`
}

// MonthOption 可选月份条目
type MonthOption struct {
	YearMonth    string `json:"year_month"`
	Label        string `json:"label"`
	HasReport    bool   `json:"has_report"`
	IsAccessible bool   `json:"is_accessible"`
}
