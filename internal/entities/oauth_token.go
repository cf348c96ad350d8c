package entities

import "time"

// OAuthToken holds the sealed backend credentials of one OAuth provider.
// Access and refresh tokens are AES-256-GCM ciphertext, never plaintext.
type OAuthToken struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"size:50;not null;uniqueIndex" json:"provider"`
	AccessToken     string     `gorm:"type:text" json:"-"`
	RefreshToken    string     `gorm:"type:text" json:"-"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}
