package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, name, email, phone, address, is_active, created_at, updated_at`

func scanCustomer(row interface{ Scan(...interface{}) error }) (Customer, error) {
	var i Customer
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.Address,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createCustomer = `-- name: CreateCustomer :one
INSERT INTO customers (name, email, phone, address)
VALUES ($1, $2, $3, $4)
RETURNING ` + customerColumns

type CreateCustomerParams struct {
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Phone   pgtype.Text `json:"phone"`
	Address pgtype.Text `json:"address"`
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, createCustomer, arg.Name, arg.Email, arg.Phone, arg.Address)
	return scanCustomer(row)
}

const getCustomerByID = `-- name: GetCustomerByID :one
SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

func (q *Queries) GetCustomerByID(ctx context.Context, id int64) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomerByID, id)
	return scanCustomer(row)
}

const getCustomerByEmail = `-- name: GetCustomerByEmail :one
SELECT ` + customerColumns + ` FROM customers WHERE email = $1`

func (q *Queries) GetCustomerByEmail(ctx context.Context, email string) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomerByEmail, email)
	return scanCustomer(row)
}

const listActiveCustomers = `-- name: ListActiveCustomers :many
SELECT ` + customerColumns + ` FROM customers
WHERE is_active = true
ORDER BY name`

func (q *Queries) ListActiveCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listActiveCustomers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Customer{}
	for rows.Next() {
		i, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const searchCustomersByName = `-- name: SearchCustomersByName :many
SELECT ` + customerColumns + ` FROM customers
WHERE name ILIKE '%' || $1::text || '%'
ORDER BY name`

func (q *Queries) SearchCustomersByName(ctx context.Context, name string) ([]Customer, error) {
	rows, err := q.db.Query(ctx, searchCustomersByName, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Customer{}
	for rows.Next() {
		i, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateCustomer = `-- name: UpdateCustomer :one
UPDATE customers
SET name = $2, email = $3, phone = $4, address = $5, updated_at = now()
WHERE id = $1
RETURNING ` + customerColumns

type UpdateCustomerParams struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Phone   pgtype.Text `json:"phone"`
	Address pgtype.Text `json:"address"`
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, updateCustomer, arg.ID, arg.Name, arg.Email, arg.Phone, arg.Address)
	return scanCustomer(row)
}

const toggleCustomerActive = `-- name: ToggleCustomerActive :one
UPDATE customers
SET is_active = NOT is_active, updated_at = now()
WHERE id = $1
RETURNING ` + customerColumns

func (q *Queries) ToggleCustomerActive(ctx context.Context, id int64) (Customer, error) {
	row := q.db.QueryRow(ctx, toggleCustomerActive, id)
	return scanCustomer(row)
}
