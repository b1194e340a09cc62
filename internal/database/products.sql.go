package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, restaurant_id, name, description, category, price, is_available, image_url, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Description,
		&i.Category,
		&i.Price,
		&i.IsAvailable,
		&i.ImageUrl,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		i, err := scanProduct(rows)
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

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (restaurant_id, name, description, category, price, image_url)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + productColumns

type CreateProductParams struct {
	RestaurantID int64          `json:"restaurant_id"`
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	Category     string         `json:"category"`
	Price        pgtype.Numeric `json:"price"`
	ImageUrl     pgtype.Text    `json:"image_url"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.RestaurantID,
		arg.Name,
		arg.Description,
		arg.Category,
		arg.Price,
		arg.ImageUrl,
	)
	return scanProduct(row)
}

const getProductByID = `-- name: GetProductByID :one
SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProductByID(ctx context.Context, id int64) (Product, error) {
	row := q.db.QueryRow(ctx, getProductByID, id)
	return scanProduct(row)
}

const listProductsByRestaurant = `-- name: ListProductsByRestaurant :many
SELECT ` + productColumns + ` FROM products
WHERE restaurant_id = $1
ORDER BY category, name`

func (q *Queries) ListProductsByRestaurant(ctx context.Context, restaurantID int64) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

const listProductsByCategory = `-- name: ListProductsByCategory :many
SELECT ` + productColumns + ` FROM products
WHERE category = $1 AND is_available = true
ORDER BY name`

func (q *Queries) ListProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByCategory, category)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

const searchProductsByName = `-- name: SearchProductsByName :many
SELECT ` + productColumns + ` FROM products
WHERE name ILIKE '%' || $1::text || '%' AND is_available = true
ORDER BY name`

func (q *Queries) SearchProductsByName(ctx context.Context, name string) ([]Product, error) {
	rows, err := q.db.Query(ctx, searchProductsByName, name)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

const listProductsByPriceRange = `-- name: ListProductsByPriceRange :many
SELECT ` + productColumns + ` FROM products
WHERE price BETWEEN $1 AND $2 AND is_available = true
ORDER BY price, name`

type ListProductsByPriceRangeParams struct {
	MinPrice pgtype.Numeric `json:"min_price"`
	MaxPrice pgtype.Numeric `json:"max_price"`
}

func (q *Queries) ListProductsByPriceRange(ctx context.Context, arg ListProductsByPriceRangeParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByPriceRange, arg.MinPrice, arg.MaxPrice)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

const updateProduct = `-- name: UpdateProduct :one
UPDATE products
SET name = $2, description = $3, category = $4, price = $5, image_url = $6, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Category    string         `json:"category"`
	Price       pgtype.Numeric `json:"price"`
	ImageUrl    pgtype.Text    `json:"image_url"`
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Category,
		arg.Price,
		arg.ImageUrl,
	)
	return scanProduct(row)
}

const setProductAvailability = `-- name: SetProductAvailability :one
UPDATE products
SET is_available = $2, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

type SetProductAvailabilityParams struct {
	ID          int64 `json:"id"`
	IsAvailable bool  `json:"is_available"`
}

func (q *Queries) SetProductAvailability(ctx context.Context, arg SetProductAvailabilityParams) (Product, error) {
	row := q.db.QueryRow(ctx, setProductAvailability, arg.ID, arg.IsAvailable)
	return scanProduct(row)
}

const countOrderItemsByProduct = `-- name: CountOrderItemsByProduct :one
SELECT count(*) FROM order_items WHERE product_id = $1`

func (q *Queries) CountOrderItemsByProduct(ctx context.Context, productID int64) (int64, error) {
	row := q.db.QueryRow(ctx, countOrderItemsByProduct, productID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteProduct = `-- name: DeleteProduct :execrows
DELETE FROM products WHERE id = $1`

func (q *Queries) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteProduct, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
