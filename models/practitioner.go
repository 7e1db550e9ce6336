package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTribunal is used when a credential set is saved without a tribunal
const DefaultTribunal = "TJCE"

// EncryptedSecret is the AES-GCM envelope of a portal password.
// All three fields are hex encoded; the column stores it as one JSON object.
type EncryptedSecret struct {
	Ciphertext string `json:"encrypted"`
	IV         string `json:"iv"`
	AuthTag    string `json:"authTag"`
}

func (s EncryptedSecret) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *EncryptedSecret) Scan(value interface{}) error {
	if value == nil {
		*s = EncryptedSecret{}
		return nil
	}
	bytes, err := columnBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, s)
}

// IsZero reports whether no password has been stored
func (s EncryptedSecret) IsZero() bool {
	return s.Ciphertext == "" && s.IV == "" && s.AuthTag == ""
}

// Practitioner holds a lawyer's portal credentials. One active set per user;
// the ID is the user id issued by the identity provider and is the upsert key.
type Practitioner struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string `json:"name"`
	Email string `json:"email,omitempty"`

	// Portal access
	OABNumber      string          `gorm:"not null;index" json:"numero_oab"`
	PortalUsername string          `gorm:"not null" json:"usuario_pje"`
	PortalPassword EncryptedSecret `gorm:"type:text;not null" json:"-"`
	Tribunal       string          `gorm:"not null;default:TJCE" json:"tribunal"`

	// Collection state
	Active bool `gorm:"not null;default:true" json:"ativo"`
	IsNew  bool `gorm:"not null;default:true" json:"is_novo"` // Longer lookback until first successful run
}

// BeforeCreate hook to generate UUID
func (p *Practitioner) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Tribunal == "" {
		p.Tribunal = DefaultTribunal
	}
	return nil
}

// TableName specifies the table name for Practitioner model
func (Practitioner) TableName() string {
	return "practitioner_credentials"
}
