package models

import "time"

// Student is the roster entry attendance and focus records refer to.
type Student struct {
	ID            string    `db:"id" json:"id"`
	UserID        *string   `db:"user_id" json:"userId,omitempty"`
	ClassID       string    `db:"class_id" json:"classId"`
	FirstName     string    `db:"first_name" json:"firstName"`
	LastName      string    `db:"last_name" json:"lastName"`
	StudentNumber string    `db:"student_number" json:"studentNumber"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// FullName joins the first and last name.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
