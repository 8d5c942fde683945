package model

// PassStatus is the lifecycle state of an access pass.
type PassStatus string

const (
	PassOrdered PassStatus = "ordered"
	PassRevoked PassStatus = "revoked"
	PassFailed  PassStatus = "failed"
)

// Pass is an access-pass request for one entry. An entry may accumulate
// several passes; only the one referenced by Entry.CurrentPassID is current.
type Pass struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	EntryID    string     `gorm:"size:36;index;not null" json:"entry_id"`
	Date       string     `gorm:"size:10;not null" json:"date"`
	RequestID  string     `gorm:"size:36;not null" json:"request_id"`
	ExternalID *string    `gorm:"size:255" json:"external_id"`
	Status     PassStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt  string     `gorm:"size:40;not null" json:"created_at"`
	UpdatedAt  *string    `gorm:"size:40" json:"updated_at"`
	UpdatedBy  *string    `gorm:"size:36" json:"updated_by"`
}
