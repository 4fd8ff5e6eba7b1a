package models

import "time"

// Class represents a class session room identified by its NFC tag.
type Class struct {
	ID        string    `db:"id" json:"id"`
	ClassName string    `db:"class_name" json:"className"`
	Section   string    `db:"section" json:"section"`
	NFCTagID  string    `db:"nfc_tag_id" json:"nfcTagId"`
	TeacherID *string   `db:"teacher_id" json:"teacherId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
