package models

import (
	"time"
)

// User 用户模型
type User struct {
	ID        string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(100)" json:"username"` // 显示名称
	Handle    string    `gorm:"type:varchar(100)" json:"handle"`   // 登录用账号名
	Email     string    `gorm:"type:varchar(100)" json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetDisplayName 获取显示名称，依次回退到账号名
func (u *User) GetDisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.Handle != "" {
		return u.Handle
	}
	return "Unknown"
}
