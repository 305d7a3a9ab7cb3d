package models

// Tag 任务标签
type Tag struct {
	ID   string `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name string `gorm:"type:varchar(50)" json:"name"`
}
