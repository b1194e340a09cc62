package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/deliverytech/api/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type sampleRestaurant struct {
	name        string
	category    string
	address     string
	phone       string
	deliveryFee string
	products    []sampleProduct
}

type sampleProduct struct {
	name        string
	description string
	category    string
	price       string
}

type sampleCustomer struct {
	name    string
	email   string
	phone   string
	address string
}

var restaurants = []sampleRestaurant{
	{
		name: "Cantina Napoli", category: "Italiana", address: "Rua Augusta, 1200", phone: "11933221100", deliveryFee: "5.00",
		products: []sampleProduct{
			{"Pizza Margherita", "Molho de tomate, mussarela e manjericao", "Pizza", "42.90"},
			{"Lasanha Bolonhesa", "Massa fresca com molho bolonhesa gratinado", "Massas", "38.50"},
			{"Tiramisu", "Sobremesa de cafe com mascarpone", "Sobremesas", "18.00"},
		},
	},
	{
		name: "Sakura Sushi", category: "Japonesa", address: "Rua Galvao Bueno, 330", phone: "11944556677", deliveryFee: "7.50",
		products: []sampleProduct{
			{"Combinado 20 pecas", "Sashimi, niguiri e uramaki do dia", "Combinados", "79.90"},
			{"Temaki Salmao", "Cone de alga com salmao e cream cheese", "Temaki", "29.90"},
		},
	},
}

var customers = []sampleCustomer{
	{"Ana Pereira", "ana.pereira@example.com", "11999990001", "Rua das Flores, 10"},
	{"Bruno Lima", "bruno.lima@example.com", "11999990002", "Avenida Paulista, 900"},
}

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	withSamples := flag.Bool("samples", true, "Also seed sample restaurants, products and customers")
	flag.Parse()

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}

	// Fall back to defaults
	if *email == "" {
		*email = "admin@deliverytech.com"
	}
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}
	if *name == "" {
		*name = "DeliveryTech Admin"
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Everything or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	adminID, err := seedUser(ctx, tx, *email, *password, *name, "ADMIN", nil)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}

	if *withSamples {
		if err := seedSamples(ctx, tx, *password); err != nil {
			log.Fatalf("Failed to seed samples: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Admin ID: %d", adminID)
}

func seedSamples(ctx context.Context, tx pgx.Tx, password string) error {
	for _, c := range customers {
		if _, err := seedCustomer(ctx, tx, c); err != nil {
			return err
		}
	}

	for i, r := range restaurants {
		rid, err := seedRestaurant(ctx, tx, r)
		if err != nil {
			return err
		}
		for _, p := range r.products {
			if err := seedProduct(ctx, tx, rid, p); err != nil {
				return err
			}
		}
		ownerEmail := fmt.Sprintf("owner%d@deliverytech.com", i+1)
		if _, err := seedUser(ctx, tx, ownerEmail, password, r.name+" Owner", "RESTAURANT", &rid); err != nil {
			return err
		}
	}
	return nil
}

// seedUser creates the user if no account with that email exists.
func seedUser(ctx context.Context, tx pgx.Tx, email, password, name, role string, restaurantID *int64) (int64, error) {
	var existingID int64
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1 LIMIT 1`, email).Scan(&existingID)
	if err == nil {
		log.Printf("User '%s' already exists (ID: %d), skipping", email, existingID)
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	var newID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (name, email, hashed_password, role, restaurant_id, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id
	`, name, email, string(hashed), role, restaurantID).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	log.Printf("Created %s user '%s' (ID: %d)", role, email, newID)
	return newID, nil
}

func seedCustomer(ctx context.Context, tx pgx.Tx, c sampleCustomer) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM customers WHERE email = $1`, c.email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("check customer: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO customers (name, email, phone, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.name, c.email, c.phone, c.address).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert customer %s: %w", c.email, err)
	}
	log.Printf("Created customer '%s' (ID: %d)", c.name, id)
	return id, nil
}

func seedRestaurant(ctx context.Context, tx pgx.Tx, r sampleRestaurant) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM restaurants WHERE name = $1`, r.name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("check restaurant: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO restaurants (name, category, address, phone, delivery_fee, delivery_time_minutes)
		VALUES ($1, $2, $3, $4, $5::numeric, 40)
		RETURNING id
	`, r.name, r.category, r.address, r.phone, r.deliveryFee).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert restaurant %s: %w", r.name, err)
	}
	log.Printf("Created restaurant '%s' (ID: %d)", r.name, id)
	return id, nil
}

func seedProduct(ctx context.Context, tx pgx.Tx, restaurantID int64, p sampleProduct) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO products (restaurant_id, name, description, category, price)
		SELECT $1, $2, $3, $4, $5::numeric
		WHERE NOT EXISTS (SELECT 1 FROM products WHERE restaurant_id = $1 AND name = $2)
	`, restaurantID, p.name, p.description, p.category, p.price)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.name, err)
	}
	if tag.RowsAffected() > 0 {
		log.Printf("Created product '%s' for restaurant %d", p.name, restaurantID)
	}
	return nil
}
