package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/restaurant-ops/internal/auth"
	"github.com/kiwari-pos/restaurant-ops/internal/config"
	"github.com/kiwari-pos/restaurant-ops/internal/demo"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/logging"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/shopspring/decimal"
)

// defaultRestaurantID keeps repeated local seeds pointing at one restaurant.
const defaultRestaurantID = "6f1c2a8e-0b3d-4c55-9a8e-2d7f4b1c9e01"

func main() {
	// CLI flags
	ridFlag := flag.String("restaurant", "", "Restaurant ID to seed")
	role := flag.String("role", enum.RoleManager, "Role of the printed dev token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	// Fall back to environment, then to the fixed local id
	if *ridFlag == "" {
		*ridFlag = os.Getenv("SEED_RESTAURANT_ID")
	}
	if *ridFlag == "" {
		*ridFlag = defaultRestaurantID
	}
	rid, err := uuid.Parse(*ridFlag)
	if err != nil {
		logger.Fatal().Err(err).Str("restaurant", *ridFlag).Msg("invalid restaurant ID")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("unable to ping database")
	}
	logger.Info().Msg("connected to database")

	// Seed in a transaction (all demo rows or none)
	tx, err := pool.Begin(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var existing int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM dining_tables WHERE restaurant_id = $1`, rid).Scan(&existing); err != nil {
		logger.Fatal().Err(err).Msg("check existing data")
	}
	if existing > 0 {
		logger.Info().Str("restaurant_id", rid.String()).Msg("restaurant already seeded, skipping")
	} else {
		sum, err := demo.Seed(ctx, pgSeeder{tx: tx}, rid)
		if err != nil {
			logger.Fatal().Err(err).Msg("seed demo data")
		}
		if err := tx.Commit(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to commit")
		}
		logger.Info().Int("ingredients", sum.Ingredients).Int("products", sum.Products).
			Int("tables", sum.Tables).Int("couriers", sum.Couriers).Msg("seed completed successfully")
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, 1, rid, *role, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate dev token")
	}
	fmt.Printf("Restaurant ID: %s\n", rid)
	fmt.Printf("Dev token (%s): %s\n", *role, token)
}

// pgSeeder inserts demo rows inside one transaction.
type pgSeeder struct {
	tx pgx.Tx
}

func numeric(d decimal.Decimal) string {
	return d.String()
}

func (s pgSeeder) AddIngredient(ctx context.Context, i model.Ingredient) (model.Ingredient, error) {
	const insertSQL = `
		INSERT INTO ingredients (restaurant_id, name, unit, stock, min_stock, unit_cost)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric)
		RETURNING id
	`
	err := s.tx.QueryRow(ctx, insertSQL, i.RestaurantID, i.Name, i.Unit,
		numeric(i.Stock), numeric(i.MinStock), numeric(i.UnitCost)).Scan(&i.ID)
	if err != nil {
		return i, fmt.Errorf("insert ingredient: %w", err)
	}
	return i, nil
}

func (s pgSeeder) AddProduct(ctx context.Context, p model.Product) (model.Product, error) {
	const insertSQL = `
		INSERT INTO products (restaurant_id, name, base_price, sellable_without_stock, is_available)
		VALUES ($1, $2, $3::numeric, $4, $5)
		RETURNING id
	`
	err := s.tx.QueryRow(ctx, insertSQL, p.RestaurantID, p.Name, numeric(p.BasePrice),
		p.SellableWithoutStock, p.IsAvailable).Scan(&p.ID)
	if err != nil {
		return p, fmt.Errorf("insert product: %w", err)
	}

	for _, ri := range p.Recipe {
		_, err := s.tx.Exec(ctx,
			`INSERT INTO recipe_items (product_id, ingredient_id, quantity) VALUES ($1, $2, $3::numeric)`,
			p.ID, ri.IngredientID, numeric(ri.Quantity))
		if err != nil {
			return p, fmt.Errorf("insert recipe item: %w", err)
		}
	}
	return p, nil
}

func (s pgSeeder) AddTable(ctx context.Context, t model.Table) (model.Table, error) {
	const insertSQL = `
		INSERT INTO dining_tables (restaurant_id, number, x, y, width, height, shape)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	g := t.Geometry
	err := s.tx.QueryRow(ctx, insertSQL, t.RestaurantID, t.Number, g.X, g.Y, g.Width, g.Height, g.Shape).Scan(&t.ID)
	if err != nil {
		return t, fmt.Errorf("insert table: %w", err)
	}
	return t, nil
}

func (s pgSeeder) AddCourier(ctx context.Context, c model.Courier) (model.Courier, error) {
	err := s.tx.QueryRow(ctx,
		`INSERT INTO couriers (restaurant_id, name) VALUES ($1, $2) RETURNING id`,
		c.RestaurantID, c.Name).Scan(&c.ID)
	if err != nil {
		return c, fmt.Errorf("insert courier: %w", err)
	}
	return c, nil
}
