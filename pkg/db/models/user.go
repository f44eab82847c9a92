package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// User is the local projection of an identity-provider account.
type User struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email     string     `gorm:"column:email;not null;uniqueIndex:ux_users_email" json:"email"`
	Role      enums.Role `gorm:"column:role;not null" json:"role"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
