// internal/repository/customer_repository.go
package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/textpulse/textpulse-backend/internal/model"
)

// CustomerRepositoryInterface defines methods used by the service layer.
type CustomerRepositoryInterface interface {
	GetByID(id int) (*model.Customer, error)
	ListByIDs(ids []int) ([]*model.Customer, error)
	ListByUser(userID int) ([]*model.Customer, error)
}

type CustomerRepository struct {
	DB *sql.DB
}

func (r *CustomerRepository) GetByID(id int) (*model.Customer, error) {
	query := `
        SELECT id, user_id, phone, first_name, last_name, email, tags
        FROM customers
        WHERE id = $1
    `
	var c model.Customer
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.UserID, &c.Phone, &c.FirstName, &c.LastName, &c.Email, &c.Tags)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

// ListByIDs fetches the given customers, preserving no particular order.
func (r *CustomerRepository) ListByIDs(ids []int) ([]*model.Customer, error) {
	if len(ids) == 0 {
		return []*model.Customer{}, nil
	}
	query := `
        SELECT id, user_id, phone, first_name, last_name, email, tags
        FROM customers
        WHERE id = ANY($1)
    `
	rows, err := r.DB.Query(query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func (r *CustomerRepository) ListByUser(userID int) ([]*model.Customer, error) {
	query := `
        SELECT id, user_id, phone, first_name, last_name, email, tags
        FROM customers
        WHERE user_id = $1
        ORDER BY id
    `
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func scanCustomers(rows *sql.Rows) ([]*model.Customer, error) {
	customers := []*model.Customer{}
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.UserID, &c.Phone, &c.FirstName, &c.LastName, &c.Email, &c.Tags); err != nil {
			return nil, err
		}
		customers = append(customers, &c)
	}
	return customers, rows.Err()
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
