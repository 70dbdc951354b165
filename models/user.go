package models

import (
	"time"
)

const UserTable = "lib_users"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// UserStatus gates borrowing: only APPROVED members may borrow.
type UserStatus string

const (
	UserPending  UserStatus = "PENDING"
	UserApproved UserStatus = "APPROVED"
	UserRejected UserStatus = "REJECTED"
)

// User 使用 UUID 字节作为 WebAuthn userHandle（存字符串即可，用时转 []byte）
type User struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	FullName     string     `gorm:"size:255;not null" json:"fullName"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	UniversityID string     `gorm:"size:64" json:"universityId"`
	IDCardURL    string     `gorm:"size:512" json:"idCardUrl,omitempty"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	Role         Role       `gorm:"size:16;not null;default:'USER'" json:"role"`
	Status       UserStatus `gorm:"size:16;not null;default:'PENDING';index" json:"status"`

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:255" json:"-"`

	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Credentials []Credential `json:"-"`
}

func (User) TableName() string { return UserTable }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Credential 为每个注册的 Passkey 存档
// CredentialID / PublicKey 为二进制，Postgres 下存 bytea
type Credential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"type:uuid;index" json:"userId"`
	CredentialID    []byte    `gorm:"uniqueIndex" json:"credentialId"`
	PublicKey       []byte    `json:"publicKey"`
	AttestationType string    `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte    `gorm:"type:bytea" json:"aaguid"`
	SignCount       uint32    `json:"signCount"`
	CloneWarning    bool      `json:"cloneWarning"`
	BackupEligible  bool      `json:"backupEligible"`
	BackupState     bool      `json:"backupState"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	LastUsedAt *time.Time `gorm:"index" json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string { return "lib_credentials" }
