package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Create the schema and seed the database with demo data",
		Flags: []cli.Flag{
			newDBURLFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Create all tables and indexes",
				Flags:  []cli.Flag{newDBURLFlag()},
				Action: runSchema,
			},
			{
				Name:   "demo",
				Usage:  "Seed demo suppliers, ingredients and recipes",
				Flags:  []cli.Flag{newDBURLFlag()},
				Action: runDemo,
			},
			{
				Name:  "all",
				Usage: "Create the schema, then seed demo data",
				Flags: []cli.Flag{newDBURLFlag()},
				Action: func(c *cli.Context) error {
					if err := runSchema(c); err != nil {
						return fmt.Errorf("error creating schema: %w", err)
					}
					if err := runDemo(c); err != nil {
						return fmt.Errorf("error seeding demo data: %w", err)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openDB(c *cli.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS suppliers (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		abn TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ingredients (
		id BIGSERIAL PRIMARY KEY,
		supplier_id BIGINT NOT NULL REFERENCES suppliers(id),
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id BIGSERIAL PRIMARY KEY,
		ingredient_id BIGINT NOT NULL REFERENCES ingredients(id),
		price NUMERIC(14,4) NOT NULL,
		log_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_ingredient
		ON price_history (ingredient_id, log_date DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		selling_price NUMERIC(14,4) NOT NULL DEFAULT 0,
		target_margin NUMERIC(7,4),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_ingredients (
		recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		ingredient_id BIGINT NOT NULL REFERENCES ingredients(id),
		quantity NUMERIC(14,4) NOT NULL,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (recipe_id, ingredient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		supplier_id BIGINT NOT NULL REFERENCES suppliers(id),
		invoice_number TEXT NOT NULL,
		invoice_date TIMESTAMPTZ,
		due_date TIMESTAMPTZ,
		file_key TEXT NOT NULL DEFAULT '',
		file_mime TEXT NOT NULL DEFAULT '',
		total NUMERIC(14,4) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'uploaded',
		extracted_data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_supplier ON invoices (supplier_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS sales_reconciliations (
		id BIGSERIAL PRIMARY KEY,
		branch TEXT NOT NULL,
		date DATE NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		receipt_file_key TEXT NOT NULL DEFAULT '',
		total_sales_from_receipt NUMERIC(14,4) NOT NULL DEFAULT 0,
		recipe_breakdown JSONB NOT NULL DEFAULT '[]'::jsonb,
		total_breakdown_sales NUMERIC(14,4) NOT NULL DEFAULT 0,
		total_cogs NUMERIC(14,4) NOT NULL DEFAULT 0,
		variance NUMERIC(14,4) NOT NULL DEFAULT 0,
		gross_margin NUMERIC(7,4) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reconciliations_day ON sales_reconciliations (branch, date, status)`,
	`CREATE TABLE IF NOT EXISTS ai_insights (
		id BIGSERIAL PRIMARY KEY,
		entity_kind TEXT NOT NULL,
		entity_id BIGINT NOT NULL,
		data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_insights_kind ON ai_insights (entity_kind, entity_id)`,
	`CREATE TABLE IF NOT EXISTS kpis (
		id BIGSERIAL PRIMARY KEY,
		ai_insight_id BIGINT NOT NULL REFERENCES ai_insights(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		baseline_value NUMERIC(14,4) NOT NULL DEFAULT 0,
		target_value NUMERIC(14,4) NOT NULL DEFAULT 0,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		milestones JSONB NOT NULL DEFAULT '[]'::jsonb,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_kpis_insight ON kpis (ai_insight_id)`,
}

func runSchema(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	log.Println("Creating schema...")

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	log.Println("Schema created successfully!")
	return nil
}

type demoIngredient struct {
	name     string
	category string
	unit     string
	price    string
}

type demoRecipe struct {
	name         string
	sellingPrice string
	lines        map[string]string // ingredient name -> quantity
}

func runDemo(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Defer a rollback in case anything fails.
	defer tx.Rollback()

	log.Println("Seeding demo data...")

	suppliers := map[string][]demoIngredient{
		"Fresh Fields Produce": {
			{"Tomatoes", "produce", "kg", "4.50"},
			{"Basil", "produce", "bunch", "2.80"},
			{"Mozzarella", "dairy", "kg", "14.00"},
		},
		"Golden Grain Milling": {
			{"Flour 00", "dry goods", "kg", "1.90"},
			{"Semolina", "dry goods", "kg", "2.20"},
		},
		"Harbour Seafood Co": {
			{"Prawns", "seafood", "kg", "28.50"},
			{"Squid", "seafood", "kg", "19.00"},
		},
	}

	ingredientIDs := make(map[string]int64)
	for name, ingredients := range suppliers {
		var supplierID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO suppliers (name) VALUES ($1) RETURNING id
		`, name).Scan(&supplierID)
		if err != nil {
			return fmt.Errorf("failed to seed supplier %s: %w", name, err)
		}

		for _, ing := range ingredients {
			var id int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO ingredients (supplier_id, name, category, unit)
				VALUES ($1, $2, $3, $4) RETURNING id
			`, supplierID, ing.name, ing.category, ing.unit).Scan(&id)
			if err != nil {
				return fmt.Errorf("failed to seed ingredient %s: %w", ing.name, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO price_history (ingredient_id, price) VALUES ($1, $2)
			`, id, ing.price); err != nil {
				return fmt.Errorf("failed to seed price for %s: %w", ing.name, err)
			}
			ingredientIDs[ing.name] = id
		}
	}

	recipes := []demoRecipe{
		{"Margherita Pizza", "22.00", map[string]string{
			"Flour 00": "0.25", "Tomatoes": "0.15", "Mozzarella": "0.12", "Basil": "0.10",
		}},
		{"Garlic Prawn Linguine", "32.00", map[string]string{
			"Semolina": "0.12", "Prawns": "0.18",
		}},
		{"Salt and Pepper Squid", "24.00", map[string]string{
			"Squid": "0.20", "Flour 00": "0.05",
		}},
	}

	for _, recipe := range recipes {
		var recipeID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO recipes (name, selling_price) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET selling_price = EXCLUDED.selling_price, updated_at = NOW()
			RETURNING id
		`, recipe.name, recipe.sellingPrice).Scan(&recipeID)
		if err != nil {
			return fmt.Errorf("failed to seed recipe %s: %w", recipe.name, err)
		}

		pos := 0
		for ingredientName, quantity := range recipe.lines {
			ingredientID, ok := ingredientIDs[ingredientName]
			if !ok {
				return fmt.Errorf("ingredient %s not seeded", ingredientName)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity, position)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (recipe_id, ingredient_id) DO UPDATE SET quantity = EXCLUDED.quantity
			`, recipeID, ingredientID, quantity, pos); err != nil {
				return fmt.Errorf("failed to seed recipe line for %s: %w", recipe.name, err)
			}
			pos++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Println("Demo data seeded successfully!")
	return nil
}
