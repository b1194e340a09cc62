package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Customer struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Phone     pgtype.Text        `json:"phone"`
	Address   pgtype.Text        `json:"address"`
	IsActive  bool               `json:"is_active"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type Order struct {
	ID              int64              `json:"id"`
	CustomerID      int64              `json:"customer_id"`
	RestaurantID    int64              `json:"restaurant_id"`
	Status          string             `json:"status"`
	DeliveryAddress string             `json:"delivery_address"`
	PostalCode      string             `json:"postal_code"`
	Notes           pgtype.Text        `json:"notes"`
	PaymentMethod   string             `json:"payment_method"`
	Subtotal        pgtype.Numeric     `json:"subtotal"`
	DeliveryFee     pgtype.Numeric     `json:"delivery_fee"`
	Total           pgtype.Numeric     `json:"total"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type OrderItem struct {
	ID        int64          `json:"id"`
	OrderID   int64          `json:"order_id"`
	ProductID int64          `json:"product_id"`
	Quantity  int32          `json:"quantity"`
	UnitPrice pgtype.Numeric `json:"unit_price"`
	Subtotal  pgtype.Numeric `json:"subtotal"`
}

type Product struct {
	ID           int64              `json:"id"`
	RestaurantID int64              `json:"restaurant_id"`
	Name         string             `json:"name"`
	Description  pgtype.Text        `json:"description"`
	Category     string             `json:"category"`
	Price        pgtype.Numeric     `json:"price"`
	IsAvailable  bool               `json:"is_available"`
	ImageUrl     pgtype.Text        `json:"image_url"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type Restaurant struct {
	ID                  int64              `json:"id"`
	Name                string             `json:"name"`
	Category            string             `json:"category"`
	Address             pgtype.Text        `json:"address"`
	Phone               pgtype.Text        `json:"phone"`
	OpeningHours        pgtype.Text        `json:"opening_hours"`
	Rating              pgtype.Numeric     `json:"rating"`
	DeliveryFee         pgtype.Numeric     `json:"delivery_fee"`
	DeliveryTimeMinutes int32              `json:"delivery_time_minutes"`
	IsActive            bool               `json:"is_active"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
	UpdatedAt           pgtype.Timestamptz `json:"updated_at"`
}

type User struct {
	ID             int64              `json:"id"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	HashedPassword string             `json:"hashed_password"`
	Role           string             `json:"role"`
	RestaurantID   pgtype.Int8        `json:"restaurant_id"`
	CustomerID     pgtype.Int8        `json:"customer_id"`
	IsActive       bool               `json:"is_active"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}
