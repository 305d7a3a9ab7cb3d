package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ktr1133/MyTeacherApp-sub003/config"
	"github.com/ktr1133/MyTeacherApp-sub003/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// ReportAIService 月度报告AI评语生成服务
type ReportAIService struct {
	client *DeepseekClient
}

func NewReportAIService(client *DeepseekClient) *ReportAIService {
	return &ReportAIService{client: client}
}

// GenerateMonthlyReportComment 根据报告数据生成教师口吻的月度评语
// 返回评语文本与消耗的token数。任何失败由调用方降级处理。
func (s *ReportAIService) GenerateMonthlyReportComment(ctx context.Context, report *models.MonthlyReport, group *models.Group, changes []MemberChange) (string, int, error) {
	config.Logger.Debugw("生成月度报告评语",
		"groupID", group.ID,
		"yearMonth", report.ReportMonth,
		"changeCount", len(changes),
	)

	messages := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildReportCommentSystemPrompt(group, changes))},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(formatReportData(report))},
		},
	}

	response, err := s.client.DsChat.GenerateContent(ctx, messages, llms.WithTemperature(0.7))
	if err != nil {
		return "", 0, fmt.Errorf("生成评语失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", 0, fmt.Errorf("未生成有效内容")
	}

	choice := response.Choices[0]
	tokens := 0
	if choice.GenerationInfo != nil {
		if total, ok := choice.GenerationInfo["TotalTokens"].(int); ok {
			tokens = total
		}
	}

	return choice.Content, tokens, nil
}

// buildReportCommentSystemPrompt 按群组的角色性格与受众主题构建系统提示词
func buildReportCommentSystemPrompt(group *models.Group, changes []MemberChange) string {
	var sb strings.Builder

	if group.AudienceTheme == "adult" {
		sb.WriteString("你是一位教师角色，要为群组的月度任务实绩报告写一段评语。请使用礼貌、得体的措辞，面向成年人。\n")
	} else {
		sb.WriteString("你是一位教师角色，要为群组的月度任务实绩报告写一段评语。请使用亲切易懂的口吻，面向孩子。\n")
	}

	sb.WriteString(fmt.Sprintf(`
性格设定：
- 语气: %s
- 热情程度: %s
- 正式程度: %s
- 幽默程度: %s

要求：
1.评语控制在300字以内
2.先肯定整体表现，再提出一条具体建议
3.禁用markdown格式
4.不要编造数据中不存在的内容`,
		group.PersonaTone, group.PersonaEnthusiasm, group.PersonaFormality, group.PersonaHumor))

	if len(changes) > 0 {
		sb.WriteString("\n\n【特别值得关注的成员】\n")
		for _, change := range changes {
			pct := change.ChangePercentage
			if pct < 0 {
				pct = -pct
			}
			if change.Type == ChangeTypeIncrease {
				sb.WriteString(fmt.Sprintf("- %s: 上月%d件→本月%d件（增长%d%%）！请在评语中点名表扬，并给予进一步的鼓励。\n",
					change.UserName, change.Previous, change.Current, pct))
			} else {
				sb.WriteString(fmt.Sprintf("- %s: 上月%d件→本月%d件（下降%d%%）。请在评语中温和地关心并鼓励，不要责备。\n",
					change.UserName, change.Previous, change.Current, pct))
			}
		}
		sb.WriteString("※请务必在评语中具体提到以上成员的名字和变化。")
	}

	return sb.String()
}

// formatReportData 将报告数据整理为提示词中的数据部分
func formatReportData(report *models.MonthlyReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("报告月份: %s\n", report.ReportMonth))
	sb.WriteString(fmt.Sprintf("普通任务完成总数: %d件\n", report.TotalNormalTaskCount()))
	sb.WriteString(fmt.Sprintf("群组任务完成总数: %d件\n", report.GroupTaskCompletedCount))
	sb.WriteString(fmt.Sprintf("群组任务报酬合计: %d\n", report.GroupTaskTotalReward))
	sb.WriteString(fmt.Sprintf("上月基准: 普通%d件 / 群组%d件 / 报酬%d\n",
		report.NormalTaskCountPreviousMonth, report.GroupTaskCountPreviousMonth, report.RewardPreviousMonth))

	sb.WriteString("\n各成员普通任务完成情况：\n")
	for _, summary := range report.MemberTaskSummary {
		sb.WriteString(fmt.Sprintf("- %s: %d件\n", summary.UserName, summary.CompletedCount))
	}

	if len(report.GroupTaskSummary) > 0 {
		sb.WriteString("\n各成员群组任务完成情况：\n")
		for _, summary := range report.GroupTaskSummary {
			sb.WriteString(fmt.Sprintf("- %s: %d件（报酬%d）\n", summary.UserName, summary.CompletedCount, summary.Reward))
		}
	}

	return sb.String()
}
