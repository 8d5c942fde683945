package model

// Entry is a scheduled guest visit.
//
// Audit timestamps are ISO-8601 strings in the server timezone, the same
// representation the scheduled instant uses.
type Entry struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Responsible *string `gorm:"size:255" json:"responsible"`
	ScheduledAt string  `gorm:"column:datetime;size:32;index;not null" json:"datetime"`
	IsCompleted bool    `gorm:"not null;default:false" json:"is_completed"`
	IsCancelled bool    `gorm:"not null;default:false" json:"is_cancelled"`

	CreatedBy string  `gorm:"size:36;not null" json:"created_by"`
	CreatedAt string  `gorm:"size:40;not null;index" json:"created_at"`
	UpdatedBy *string `gorm:"size:36" json:"updated_by"`
	UpdatedAt *string `gorm:"size:40" json:"updated_at"`
	DeletedBy *string `gorm:"size:36" json:"deleted_by,omitempty"`
	DeletedAt *string `gorm:"size:40;index" json:"deleted_at,omitempty"`

	CurrentPassID *string `gorm:"size:36" json:"current_pass_id"`
}

// IsDeleted reports whether the entry has been soft-deleted.
func (e *Entry) IsDeleted() bool {
	return e.DeletedAt != nil
}
