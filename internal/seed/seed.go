package seed

import (
	"context"
	"errors"
	"fmt"

	"webshop/internal/domain"
	"webshop/internal/logger"
	productrepo "webshop/internal/repository/product"
	userrepo "webshop/internal/repository/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type userCreator interface {
	Create(ctx context.Context, u domain.User) (*domain.User, error)
}

type productUpserter interface {
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type userSeed struct {
	user     domain.User
	password string
}

var users = []userSeed{
	{
		user: domain.User{
			Name:  "Admin User",
			Email: "admin@webshop.com",
			Role:  domain.RoleAdmin,
			Address: domain.Address{
				Street: "123 Admin St", City: "Admin City", State: "AC", ZipCode: "12345", Country: "USA",
			},
		},
		password: "admin123",
	},
	{
		user: domain.User{
			Name:  "John Doe",
			Email: "john@example.com",
			Role:  domain.RoleUser,
			Address: domain.Address{
				Street: "456 User Ave", City: "User City", State: "UC", ZipCode: "67890", Country: "USA",
			},
		},
		password: "password123",
	},
}

func product(name, description string, priceCents int64, category, brand string, stock int, image string, featured bool, rating float64, ratings int) domain.Product {
	return domain.Product{
		Name:        name,
		Description: description,
		PriceCents:  priceCents,
		Category:    category,
		Brand:       brand,
		Stock:       stock,
		Status:      domain.ProductActive,
		Images:      []string{image},
		Featured:    featured,
		Rating:      domain.Rating{Average: rating, Count: ratings},
	}
}

var products = []domain.Product{
	product("iPhone 15 Pro", "Latest iPhone with advanced camera system and A17 Pro chip", 99999, "electronics", "Apple", 50,
		"https://via.placeholder.com/400x400/007bff/ffffff?text=iPhone+15+Pro", true, 4.8, 125),
	product("Samsung Galaxy S24", "Premium Android smartphone with AI-powered features", 89999, "electronics", "Samsung", 30,
		"https://via.placeholder.com/400x400/28a745/ffffff?text=Galaxy+S24", true, 4.6, 89),
	product("MacBook Air M3", "Ultra-lightweight laptop with M3 chip and all-day battery life", 129999, "electronics", "Apple", 25,
		"https://via.placeholder.com/400x400/6c757d/ffffff?text=MacBook+Air", true, 4.9, 67),
	product("Nike Air Max 270", "Comfortable running shoes with Air Max cushioning", 12999, "clothing", "Nike", 100,
		"https://via.placeholder.com/400x400/dc3545/ffffff?text=Nike+Air+Max", false, 4.4, 234),
	product("Adidas Ultraboost 22", "Premium running shoes with responsive cushioning", 18999, "clothing", "Adidas", 75,
		"https://via.placeholder.com/400x400/000000/ffffff?text=Ultraboost", false, 4.5, 156),
	product("Sony WH-1000XM5", "Industry-leading noise canceling wireless headphones", 39999, "electronics", "Sony", 40,
		"https://via.placeholder.com/400x400/ffc107/000000?text=Sony+WH1000XM5", true, 4.7, 312),
	product("The Art of Programming", "Comprehensive guide to software development and algorithms", 4999, "books", "Tech Publications", 200,
		"https://via.placeholder.com/400x400/17a2b8/ffffff?text=Programming+Book", false, 4.3, 87),
	product("Instant Pot Duo 7-in-1", "Multi-functional electric pressure cooker", 7999, "home", "Instant Pot", 60,
		"https://via.placeholder.com/400x400/6f42c1/ffffff?text=Instant+Pot", false, 4.6, 1024),
	product("Wilson Tennis Racket Pro", "Professional-grade tennis racket for serious players", 15999, "sports", "Wilson", 35,
		"https://via.placeholder.com/400x400/fd7e14/ffffff?text=Tennis+Racket", false, 4.2, 45),
	product("Yoga Mat Premium", "Non-slip exercise mat perfect for yoga and pilates", 3999, "sports", "FitLife", 150,
		"https://via.placeholder.com/400x400/20c997/ffffff?text=Yoga+Mat", false, 4.1, 203),
	product("Smart Watch Series 9", "Advanced fitness tracking with health monitoring features", 29999, "electronics", "TechWear", 80,
		"https://via.placeholder.com/400x400/e83e8c/ffffff?text=Smart+Watch", true, 4.4, 167),
	product("Coffee Maker Deluxe", "Programmable coffee maker with built-in grinder", 14999, "home", "BrewMaster", 45,
		"https://via.placeholder.com/400x400/795548/ffffff?text=Coffee+Maker", false, 4.0, 298),
}

// Result counts what a seed run wrote.
type Result struct {
	UsersCreated int
	UsersSkipped int
	Products     int
}

// Apply inserts demo accounts and the sample catalog. It is idempotent: existing users are kept
// and products are upserted by name.
func Apply(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) (Result, error) {
	return run(ctx, userrepo.NewPostgres(pool, log), productrepo.NewPostgres(pool, log), log)
}

func run(ctx context.Context, userRepo userCreator, productRepo productUpserter, log *logger.Logger) (Result, error) {
	log = logger.OrNop(log).With("component", "seed")
	var res Result

	for _, s := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.password), bcrypt.DefaultCost)
		if err != nil {
			return res, fmt.Errorf("hash password for %s: %w", s.user.Email, err)
		}
		u := s.user
		u.PasswordHash = string(hash)
		if _, err := userRepo.Create(ctx, u); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				res.UsersSkipped++
				log.Debug("user exists, skipping", "email", u.Email)
				continue
			}
			return res, fmt.Errorf("create user %s: %w", u.Email, err)
		}
		res.UsersCreated++
	}

	for _, p := range products {
		if _, err := productRepo.Upsert(ctx, p); err != nil {
			return res, fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
		res.Products++
	}

	log.Info("seed applied", "users_created", res.UsersCreated, "users_skipped", res.UsersSkipped, "products", res.Products)
	return res, nil
}
