package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, name, email, hashed_password, role, restaurant_id, customer_id, is_active, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.HashedPassword,
		&i.Role,
		&i.RestaurantID,
		&i.CustomerID,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (name, email, hashed_password, role, restaurant_id, customer_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

type CreateUserParams struct {
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	HashedPassword string      `json:"hashed_password"`
	Role           string      `json:"role"`
	RestaurantID   pgtype.Int8 `json:"restaurant_id"`
	CustomerID     pgtype.Int8 `json:"customer_id"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.Name,
		arg.Email,
		arg.HashedPassword,
		arg.Role,
		arg.RestaurantID,
		arg.CustomerID,
	)
	return scanUser(row)
}

const registerCustomerUser = `-- name: RegisterCustomerUser :one
WITH c AS (
    INSERT INTO customers (name, email, phone, address)
    VALUES ($1, $2, $4, $5)
    RETURNING id
)
INSERT INTO users (name, email, hashed_password, role, customer_id)
SELECT $1, $2, $3, 'CUSTOMER', c.id FROM c
RETURNING ` + userColumns

type RegisterCustomerUserParams struct {
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	HashedPassword string      `json:"hashed_password"`
	Phone          pgtype.Text `json:"phone"`
	Address        pgtype.Text `json:"address"`
}

// RegisterCustomerUser creates a customer record and a CUSTOMER user linked
// to it in one statement.
func (q *Queries) RegisterCustomerUser(ctx context.Context, arg RegisterCustomerUserParams) (User, error) {
	row := q.db.QueryRow(ctx, registerCustomerUser,
		arg.Name,
		arg.Email,
		arg.HashedPassword,
		arg.Phone,
		arg.Address,
	)
	return scanUser(row)
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	return scanUser(row)
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = true`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	return scanUser(row)
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + ` FROM users WHERE is_active = true ORDER BY id`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		i, err := scanUser(rows)
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

const deactivateUser = `-- name: DeactivateUser :one
UPDATE users SET is_active = false
WHERE id = $1 AND is_active = true
RETURNING id`

func (q *Queries) DeactivateUser(ctx context.Context, id int64) (int64, error) {
	row := q.db.QueryRow(ctx, deactivateUser, id)
	var i int64
	err := row.Scan(&i)
	return i, err
}
