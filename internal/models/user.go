package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           string         `gorm:"type:varchar(36);primarykey" json:"id"`
	Username     string         `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email        *string        `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`
	ImageURL     string         `gorm:"type:varchar(512)" json:"image_url"`
	IsStaff      bool           `gorm:"not null" json:"is_staff"`
	IsSuperuser  bool           `gorm:"not null" json:"is_superuser"`
	IsActive     bool           `gorm:"not null" json:"is_active"`
	DateJoined   time.Time      `json:"date_joined"`
	LastLogin    *time.Time     `json:"last_login"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns the opaque ID and join timestamp.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now()
	}
	return nil
}
