package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ktr1133/MyTeacherApp-sub003/config"
	"github.com/ktr1133/MyTeacherApp-sub003/models"
	"github.com/ktr1133/MyTeacherApp-sub003/services"
)

type ReportController struct {
	reports    *services.MonthlyReportService
	classifier *services.ClassifierService
}

func NewReportController(reports *services.MonthlyReportService, classifier *services.ClassifierService) *ReportController {
	return &ReportController{reports: reports, classifier: classifier}
}

// GetMonthlyReport 获取指定年月的报告（含订阅权限判定）
func (rc *ReportController) GetMonthlyReport(c *gin.Context) {
	group, ok := loadGroupWithMembers(c)
	if !ok {
		return
	}
	yearMonth := c.Param("yearMonth")

	if !rc.checkAccess(c, group, yearMonth) {
		return
	}

	report, err := rc.reports.GetMonthlyReport(group.ID, yearMonth)
	if err != nil {
		rc.renderReadError(c, err)
		return
	}

	c.JSON(http.StatusOK, rc.reports.FormatReportForDisplay(report))
}

// GetTrend 获取趋势图数据（最近N个月，默认6）
func (rc *ReportController) GetTrend(c *gin.Context) {
	group, ok := loadGroupWithMembers(c)
	if !ok {
		return
	}
	yearMonth := c.Param("yearMonth")

	if !rc.checkAccess(c, group, yearMonth) {
		return
	}

	months := 6
	if monthsStr := c.Query("months"); monthsStr != "" {
		var err error
		months, err = strconv.Atoi(monthsStr)
		if err != nil || months <= 0 || months > 24 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的月数"})
			return
		}
	}

	trend, err := rc.reports.GetTrendData(group, yearMonth, months)
	if err != nil {
		rc.renderReadError(c, err)
		return
	}

	c.JSON(http.StatusOK, trend)
}

// GetClassification 获取指定月份任务标题的分类统计
func (rc *ReportController) GetClassification(c *gin.Context) {
	group, ok := loadGroupWithMembers(c)
	if !ok {
		return
	}
	yearMonth := c.Param("yearMonth")

	if !rc.checkAccess(c, group, yearMonth) {
		return
	}

	report, err := rc.reports.GetMonthlyReport(group.ID, yearMonth)
	if err != nil {
		rc.renderReadError(c, err)
		return
	}

	titles := []string{}
	for _, summary := range report.MemberTaskSummary {
		for _, task := range summary.Tasks {
			titles = append(titles, task.Title)
		}
	}
	for _, detail := range report.GroupTaskDetails {
		titles = append(titles, detail.Title)
	}

	c.JSON(http.StatusOK, rc.classifier.Classify(titles))
}

// GetAvailableMonths 获取可选月份列表
func (rc *ReportController) GetAvailableMonths(c *gin.Context) {
	group, ok := loadGroupWithMembers(c)
	if !ok {
		return
	}

	limit := 12
	if limitStr := c.Query("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的件数限制"})
			return
		}
	}

	months, err := rc.reports.GetAvailableMonths(group, limit)
	if err != nil {
		config.Logger.Errorw("可选月份获取失败", "error", err, "groupID", group.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "可选月份获取失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"months": months})
}

// GenerateReport 生成单个群组的月度报告（内部接口）
func (rc *ReportController) GenerateReport(c *gin.Context) {
	var req models.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求"})
		return
	}

	var group models.Group
	if err := config.DB.First(&group, "id = ?", req.GroupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "群组不存在"})
		return
	}

	report, err := rc.reports.GenerateMonthlyReport(c.Request.Context(), &group, req.YearMonth)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPeriod) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report_id":    report.ID,
		"group_id":     report.GroupID,
		"report_month": report.ReportMonth,
	})
}

// GenerateAllReports 批量生成所有群组的月度报告（内部接口，定时任务调用）
// 单组失败不中断，整体以汇总结果返回。
func (rc *ReportController) GenerateAllReports(c *gin.Context) {
	var req models.GenerateAllReportsRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求"})
		return
	}

	result := rc.reports.GenerateReportsForAllGroups(c.Request.Context(), req.YearMonth)
	c.JSON(http.StatusOK, result)
}

// CleanupReports 清理一年前的报告（内部接口，定时任务调用）
func (rc *ReportController) CleanupReports(c *gin.Context) {
	deleted, err := rc.reports.CleanupOldReports()
	if err != nil {
		config.Logger.Errorw("过期报告清理失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "清理失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// checkAccess 读取侧订阅权限判定，拒绝时返回403
func (rc *ReportController) checkAccess(c *gin.Context, group *models.Group, yearMonth string) bool {
	accessible, err := rc.reports.CanAccessReport(group, yearMonth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的年月"})
		return false
	}
	if !accessible {
		c.JSON(http.StatusForbidden, gin.H{"error": "需要订阅才能查看该月份的报告"})
		return false
	}
	return true
}

func (rc *ReportController) renderReadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPeriod):
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的年月"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "报告不存在"})
	default:
		config.Logger.Errorw("报告读取失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "报告读取失败"})
	}
}
