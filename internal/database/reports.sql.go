package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getSalesByRestaurant = `-- name: GetSalesByRestaurant :many
SELECT r.id AS restaurant_id,
       r.name AS restaurant_name,
       count(o.id)::bigint AS order_count,
       COALESCE(sum(o.total), 0)::numeric(12,2) AS total_sales
FROM orders o
JOIN restaurants r ON r.id = o.restaurant_id
WHERE o.status <> 'CANCELED'
GROUP BY r.id, r.name
ORDER BY total_sales DESC`

type GetSalesByRestaurantRow struct {
	RestaurantID   int64          `json:"restaurant_id"`
	RestaurantName string         `json:"restaurant_name"`
	OrderCount     int64          `json:"order_count"`
	TotalSales     pgtype.Numeric `json:"total_sales"`
}

func (q *Queries) GetSalesByRestaurant(ctx context.Context) ([]GetSalesByRestaurantRow, error) {
	rows, err := q.db.Query(ctx, getSalesByRestaurant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetSalesByRestaurantRow{}
	for rows.Next() {
		var i GetSalesByRestaurantRow
		if err := rows.Scan(
			&i.RestaurantID,
			&i.RestaurantName,
			&i.OrderCount,
			&i.TotalSales,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTopProducts = `-- name: GetTopProducts :many
SELECT p.id AS product_id,
       p.name AS product_name,
       sum(oi.quantity)::bigint AS quantity_sold,
       sum(oi.subtotal)::numeric(12,2) AS revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN products p ON p.id = oi.product_id
WHERE o.status <> 'CANCELED'
GROUP BY p.id, p.name
ORDER BY quantity_sold DESC, p.name
LIMIT $1`

type GetTopProductsRow struct {
	ProductID    int64          `json:"product_id"`
	ProductName  string         `json:"product_name"`
	QuantitySold int64          `json:"quantity_sold"`
	Revenue      pgtype.Numeric `json:"revenue"`
}

func (q *Queries) GetTopProducts(ctx context.Context, limit int32) ([]GetTopProductsRow, error) {
	rows, err := q.db.Query(ctx, getTopProducts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetTopProductsRow{}
	for rows.Next() {
		var i GetTopProductsRow
		if err := rows.Scan(
			&i.ProductID,
			&i.ProductName,
			&i.QuantitySold,
			&i.Revenue,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTopCustomers = `-- name: GetTopCustomers :many
SELECT c.id AS customer_id,
       c.name AS customer_name,
       count(o.id)::bigint AS order_count,
       COALESCE(sum(o.total), 0)::numeric(12,2) AS total_spent
FROM orders o
JOIN customers c ON c.id = o.customer_id
WHERE o.status <> 'CANCELED'
GROUP BY c.id, c.name
ORDER BY order_count DESC, total_spent DESC
LIMIT $1`

type GetTopCustomersRow struct {
	CustomerID   int64          `json:"customer_id"`
	CustomerName string         `json:"customer_name"`
	OrderCount   int64          `json:"order_count"`
	TotalSpent   pgtype.Numeric `json:"total_spent"`
}

func (q *Queries) GetTopCustomers(ctx context.Context, limit int32) ([]GetTopCustomersRow, error) {
	rows, err := q.db.Query(ctx, getTopCustomers, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetTopCustomersRow{}
	for rows.Next() {
		var i GetTopCustomersRow
		if err := rows.Scan(
			&i.CustomerID,
			&i.CustomerName,
			&i.OrderCount,
			&i.TotalSpent,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Days are bucketed in the configured business time zone, passed as $3.
const getOrdersByPeriod = `-- name: GetOrdersByPeriod :many
SELECT (o.created_at AT TIME ZONE $3::text)::date AS day,
       count(o.id)::bigint AS order_count,
       COALESCE(sum(o.total), 0)::numeric(12,2) AS total_sales
FROM orders o
WHERE o.created_at >= $1 AND o.created_at < $2
  AND o.status <> 'CANCELED'
GROUP BY day
ORDER BY day`

type GetOrdersByPeriodParams struct {
	StartDate pgtype.Timestamptz `json:"start_date"`
	EndDate   pgtype.Timestamptz `json:"end_date"`
	TimeZone  string             `json:"time_zone"`
}

type GetOrdersByPeriodRow struct {
	Day        pgtype.Date    `json:"day"`
	OrderCount int64          `json:"order_count"`
	TotalSales pgtype.Numeric `json:"total_sales"`
}

func (q *Queries) GetOrdersByPeriod(ctx context.Context, arg GetOrdersByPeriodParams) ([]GetOrdersByPeriodRow, error) {
	rows, err := q.db.Query(ctx, getOrdersByPeriod, arg.StartDate, arg.EndDate, arg.TimeZone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetOrdersByPeriodRow{}
	for rows.Next() {
		var i GetOrdersByPeriodRow
		if err := rows.Scan(&i.Day, &i.OrderCount, &i.TotalSales); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
