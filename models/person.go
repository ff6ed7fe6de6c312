package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const PersonTable = "esc_persons"

type Role string

const (
	RoleInjured     Role = "Injured"
	RoleMedic       Role = "Medic"
	RoleLogistician Role = "Logistician"
)

var Roles = []Role{RoleInjured, RoleMedic, RoleLogistician}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Person 是登录系统的任何人：伤员、医生、后勤。
// ID 同时作为 WebAuthn userHandle；Identifier 是登录名 prenom.nom
type Person struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	Identifier   string         `gorm:"uniqueIndex;size:255;not null" json:"identifier"`
	FirstName    string         `gorm:"size:120;not null" json:"firstName"`
	LastName     string         `gorm:"size:120;not null" json:"lastName"`
	BirthDate    datatypes.Date `gorm:"not null" json:"birthDate"`
	PasswordHash string         `gorm:"size:100;not null" json:"-"`
	Role         Role           `gorm:"size:20;not null;index" json:"role"`

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:255" json:"-"`

	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Credentials []Credential `json:"-"`
}

func (Person) TableName() string { return PersonTable }

// Trim 去掉文本字段首尾空白
func (p *Person) Trim() {
	p.Identifier = strings.TrimSpace(p.Identifier)
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Role = Role(strings.TrimSpace(string(p.Role)))
}

// Credential 为每个注册的 Passkey 存档
type Credential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PersonID        string    `gorm:"type:uuid;index" json:"personId"`
	CredentialID    []byte    `gorm:"uniqueIndex" json:"credentialId"`
	PublicKey       []byte    `json:"publicKey"`
	AttestationType string    `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte    `json:"aaguid"`
	SignCount       uint32    `json:"signCount"`
	CloneWarning    bool      `json:"cloneWarning"`
	BackupEligible  bool      `json:"backupEligible"`
	BackupState     bool      `json:"backupState"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	LastUsedAt *time.Time `gorm:"index" json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string { return "esc_credentials" }
