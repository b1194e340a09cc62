package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const restaurantColumns = `id, name, category, address, phone, opening_hours, rating,
    delivery_fee, delivery_time_minutes, is_active, created_at, updated_at`

func scanRestaurant(row interface{ Scan(...interface{}) error }) (Restaurant, error) {
	var i Restaurant
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Category,
		&i.Address,
		&i.Phone,
		&i.OpeningHours,
		&i.Rating,
		&i.DeliveryFee,
		&i.DeliveryTimeMinutes,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectRestaurants(rows pgx.Rows) ([]Restaurant, error) {
	defer rows.Close()
	items := []Restaurant{}
	for rows.Next() {
		i, err := scanRestaurant(rows)
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

const createRestaurant = `-- name: CreateRestaurant :one
INSERT INTO restaurants (name, category, address, phone, opening_hours, rating, delivery_fee, delivery_time_minutes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + restaurantColumns

type CreateRestaurantParams struct {
	Name                string         `json:"name"`
	Category            string         `json:"category"`
	Address             pgtype.Text    `json:"address"`
	Phone               pgtype.Text    `json:"phone"`
	OpeningHours        pgtype.Text    `json:"opening_hours"`
	Rating              pgtype.Numeric `json:"rating"`
	DeliveryFee         pgtype.Numeric `json:"delivery_fee"`
	DeliveryTimeMinutes int32          `json:"delivery_time_minutes"`
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, createRestaurant,
		arg.Name,
		arg.Category,
		arg.Address,
		arg.Phone,
		arg.OpeningHours,
		arg.Rating,
		arg.DeliveryFee,
		arg.DeliveryTimeMinutes,
	)
	return scanRestaurant(row)
}

const getRestaurantByID = `-- name: GetRestaurantByID :one
SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`

func (q *Queries) GetRestaurantByID(ctx context.Context, id int64) (Restaurant, error) {
	row := q.db.QueryRow(ctx, getRestaurantByID, id)
	return scanRestaurant(row)
}

const listRestaurants = `-- name: ListRestaurants :many
SELECT ` + restaurantColumns + ` FROM restaurants
WHERE ($1::text IS NULL OR category = $1)
  AND ($2::boolean IS NULL OR is_active = $2)
ORDER BY name
LIMIT $3 OFFSET $4`

type ListRestaurantsParams struct {
	Category pgtype.Text `json:"category"`
	IsActive pgtype.Bool `json:"is_active"`
	Limit    int32       `json:"limit"`
	Offset   int32       `json:"offset"`
}

func (q *Queries) ListRestaurants(ctx context.Context, arg ListRestaurantsParams) ([]Restaurant, error) {
	rows, err := q.db.Query(ctx, listRestaurants, arg.Category, arg.IsActive, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectRestaurants(rows)
}

const countRestaurants = `-- name: CountRestaurants :one
SELECT count(*) FROM restaurants
WHERE ($1::text IS NULL OR category = $1)
  AND ($2::boolean IS NULL OR is_active = $2)`

type CountRestaurantsParams struct {
	Category pgtype.Text `json:"category"`
	IsActive pgtype.Bool `json:"is_active"`
}

func (q *Queries) CountRestaurants(ctx context.Context, arg CountRestaurantsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countRestaurants, arg.Category, arg.IsActive)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listAvailableRestaurants = `-- name: ListAvailableRestaurants :many
SELECT ` + restaurantColumns + ` FROM restaurants
WHERE is_active = true
ORDER BY rating DESC, name`

func (q *Queries) ListAvailableRestaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := q.db.Query(ctx, listAvailableRestaurants)
	if err != nil {
		return nil, err
	}
	return collectRestaurants(rows)
}

const listRestaurantsByCategory = `-- name: ListRestaurantsByCategory :many
SELECT ` + restaurantColumns + ` FROM restaurants
WHERE category = $1 AND is_active = true
ORDER BY name`

func (q *Queries) ListRestaurantsByCategory(ctx context.Context, category string) ([]Restaurant, error) {
	rows, err := q.db.Query(ctx, listRestaurantsByCategory, category)
	if err != nil {
		return nil, err
	}
	return collectRestaurants(rows)
}

const updateRestaurant = `-- name: UpdateRestaurant :one
UPDATE restaurants
SET name = $2, category = $3, address = $4, phone = $5, opening_hours = $6,
    delivery_fee = $7, delivery_time_minutes = $8, updated_at = now()
WHERE id = $1
RETURNING ` + restaurantColumns

type UpdateRestaurantParams struct {
	ID                  int64          `json:"id"`
	Name                string         `json:"name"`
	Category            string         `json:"category"`
	Address             pgtype.Text    `json:"address"`
	Phone               pgtype.Text    `json:"phone"`
	OpeningHours        pgtype.Text    `json:"opening_hours"`
	DeliveryFee         pgtype.Numeric `json:"delivery_fee"`
	DeliveryTimeMinutes int32          `json:"delivery_time_minutes"`
}

func (q *Queries) UpdateRestaurant(ctx context.Context, arg UpdateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, updateRestaurant,
		arg.ID,
		arg.Name,
		arg.Category,
		arg.Address,
		arg.Phone,
		arg.OpeningHours,
		arg.DeliveryFee,
		arg.DeliveryTimeMinutes,
	)
	return scanRestaurant(row)
}

const toggleRestaurantActive = `-- name: ToggleRestaurantActive :one
UPDATE restaurants
SET is_active = NOT is_active, updated_at = now()
WHERE id = $1
RETURNING ` + restaurantColumns

func (q *Queries) ToggleRestaurantActive(ctx context.Context, id int64) (Restaurant, error) {
	row := q.db.QueryRow(ctx, toggleRestaurantActive, id)
	return scanRestaurant(row)
}
