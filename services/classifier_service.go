package services

import (
	"strings"
)

// TaskCategory 任务分类定义
type TaskCategory struct {
	Label    string
	Keywords []string
}

// DefaultTaskCategories 默认分类表
// 顺序即判定顺序：标题命中多个分类的关键词时，归入最先声明的分类。
// 下游图表依赖这个既有顺序，调整前需确认消费端。
var DefaultTaskCategories = []TaskCategory{
	{Label: "学习", Keywords: []string{"学习", "作业", "复习", "预习", "练习", "听写", "背诵", "考试"}},
	{Label: "家务", Keywords: []string{"打扫", "整理", "收拾", "洗", "垃圾", "做饭", "房间", "浇花"}},
	{Label: "运动", Keywords: []string{"跑步", "运动", "锻炼", "跳绳", "球", "游泳", "散步"}},
	{Label: "阅读", Keywords: []string{"阅读", "读书", "看书", "绘本"}},
	{Label: "创造", Keywords: []string{"画", "手工", "写作", "练琴", "钢琴", "音乐"}},
}

const (
	// OtherCategoryLabel 未命中任何分类时的兜底分类
	OtherCategoryLabel = "其他"

	// NoTaskLabel 输入为空时返回的占位分类。
	// 占位值固定为1件，仅用于图表不至于空白，不代表真实统计。
	NoTaskLabel = "暂无任务"
)

// TaskClassification 分类结果，Labels与Data平行且等长
type TaskClassification struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// ClassifierService 任务标题关键词分类服务
type ClassifierService struct {
	categories []TaskCategory
}

func NewClassifierService(categories []TaskCategory) *ClassifierService {
	return &ClassifierService{categories: categories}
}

// Classify 对任务标题列表做关键词分类
// 每个标题按声明顺序测试各分类，任一关键词为标题子串（区分大小写）即命中；
// 全部未命中计入"其他"。计数为0的分类（含"其他"）从结果中剔除。
func (s *ClassifierService) Classify(titles []string) *TaskClassification {
	if len(titles) == 0 {
		return &TaskClassification{
			Labels: []string{NoTaskLabel},
			Data:   []int{1},
		}
	}

	counts := make([]int, len(s.categories))
	otherCount := 0

	for _, title := range titles {
		matched := false
		for i, category := range s.categories {
			if containsAny(title, category.Keywords) {
				counts[i]++
				matched = true
				break
			}
		}
		if !matched {
			otherCount++
		}
	}

	result := &TaskClassification{Labels: []string{}, Data: []int{}}
	for i, category := range s.categories {
		if counts[i] == 0 {
			continue
		}
		result.Labels = append(result.Labels, category.Label)
		result.Data = append(result.Data, counts[i])
	}
	if otherCount > 0 {
		result.Labels = append(result.Labels, OtherCategoryLabel)
		result.Data = append(result.Data, otherCount)
	}

	return result
}

func containsAny(title string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(title, keyword) {
			return true
		}
	}
	return false
}
