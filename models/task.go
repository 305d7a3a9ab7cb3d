package models

import (
	"time"
)

// Task 任务模型
// GroupTaskID 非空时表示该记录是一个群组任务分发给某个成员的副本，
// 多条记录共享同一个 GroupTaskID。
type Task struct {
	ID           string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	Title        string     `gorm:"type:varchar(100)" json:"title"`
	Notes        string     `gorm:"type:text" json:"notes"`
	IsCompleted  bool       `json:"isCompleted"`
	CompletedAt  *time.Time `gorm:"index" json:"completedAt"`
	DueDate      *time.Time `json:"dueDate"`
	Reward       int        `gorm:"default:0" json:"reward"` // 非群组任务为0
	GroupTaskID  *string    `gorm:"type:varchar(50);index" json:"groupTaskId"`
	UserID       string     `gorm:"type:varchar(50);index" json:"userId"`
	LastModified time.Time  `json:"lastModified"`

	Tags []Tag `gorm:"many2many:task_tags" json:"tags,omitempty"`
}

// TagNames 返回任务的标签名称列表
func (t *Task) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return names
}
