package models

import "time"

// UserRole represents the global role carried in access tokens.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStudent UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"displayName"`
	StudentID   string    `db:"student_id" json:"studentId"`
	Email       string    `db:"email" json:"email"`
	Role        UserRole  `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
