package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the buyer profile read by the order pipeline.
type User struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email         string    `gorm:"column:email;not null;uniqueIndex"`
	FirstName     string    `gorm:"column:first_name;not null;default:''"`
	LastName      string    `gorm:"column:last_name;not null;default:''"`
	Phone         *string   `gorm:"column:phone"`
	PurchaseCount int       `gorm:"column:purchase_count;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}
