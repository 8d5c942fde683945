package model

import "time"

// User is an operator account. Administration of accounts happens
// elsewhere; this service only reads them to resolve principals.
type User struct {
	ID        string  `gorm:"primaryKey;size:36"`
	Username  string  `gorm:"size:64;uniqueIndex;not null"`
	FullName  string  `gorm:"size:255"`
	IsAdmin   bool    `gorm:"not null;default:false"`
	IsActive  bool    `gorm:"not null"`
	RoleID    *string `gorm:"size:36;index"`
	CreatedAt time.Time
}

// Role groups a set of permission codes.
type Role struct {
	ID            string `gorm:"primaryKey;size:36"`
	Name          string `gorm:"size:64;uniqueIndex;not null"`
	Description   string `gorm:"size:255"`
	InterfaceType string `gorm:"size:16;not null;default:user"`
}

// Permission is one entry of the permission catalog.
type Permission struct {
	Code        string `gorm:"primaryKey;size:64"`
	Description string `gorm:"size:255"`
}

// RolePermission grants a permission code to a role.
type RolePermission struct {
	RoleID         string `gorm:"primaryKey;size:36"`
	PermissionCode string `gorm:"primaryKey;size:64"`
}
