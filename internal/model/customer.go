// internal/model/customer.go
package model

import "github.com/lib/pq"

type Customer struct {
	ID        int            `db:"id" json:"id"`
	UserID    int            `db:"user_id" json:"user_id"`
	Phone     string         `db:"phone" json:"phone"`
	FirstName string         `db:"first_name" json:"first_name"`
	LastName  string         `db:"last_name" json:"last_name"`
	Email     string         `db:"email" json:"email"`
	Tags      pq.StringArray `db:"tags" json:"tags"`
}
