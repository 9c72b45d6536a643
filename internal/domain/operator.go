package domain

import (
	"time"
)

type Role string

const (
	RoleAnalyst Role = "分析员" // 只能查看运行结果
	RoleAdmin   Role = "管理员" // 可以导入家庭数据、发起运行
)

// Operator 为可以登录系统的操作人员
type Operator struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}
