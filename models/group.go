package models

import (
	"time"
)

// Group 群组模型（家庭或班级）
type Group struct {
	ID                 string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(100)" json:"name"`
	CreatedAt          time.Time `json:"createdAt"`
	SubscriptionActive bool      `gorm:"default:false" json:"subscriptionActive"`

	// 教师角色性格配置，用于AI评语的语气
	PersonaTone       string `gorm:"type:varchar(30);default:friendly" json:"personaTone"`
	PersonaEnthusiasm string `gorm:"type:varchar(30);default:moderate" json:"personaEnthusiasm"`
	PersonaFormality  string `gorm:"type:varchar(30);default:neutral" json:"personaFormality"`
	PersonaHumor      string `gorm:"type:varchar(30);default:moderate" json:"personaHumor"`

	// 受众主题：adult 或 child，决定评语口吻
	AudienceTheme string `gorm:"type:varchar(20);default:child" json:"audienceTheme"`

	Members []User `gorm:"many2many:group_members" json:"members,omitempty"`
}
