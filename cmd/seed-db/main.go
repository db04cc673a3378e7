// Command seed-db loads a catalog fixture (stores, users, products with
// variants, coupons) into the database. Safe to re-run: every write is an
// upsert.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/repository"
)

type catalogJSON struct {
	Stores   []storeJSON   `json:"stores"`
	Users    []userJSON    `json:"users"`
	Products []productJSON `json:"products"`
	Coupons  []couponJSON  `json:"coupons"`
}

type storeJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userJSON struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type productJSON struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"storeId"`
	Name          string          `json:"name"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	DiscountPrice decimal.Decimal `json:"discountPrice"`
	DiscountStart *time.Time      `json:"discountStart"`
	DiscountEnd   *time.Time      `json:"discountEnd"`
	Category      string          `json:"category"`
	Image         string          `json:"image"`
	Stock         int64           `json:"stock"`
	Variants      []variantJSON   `json:"variants"`
}

type variantJSON struct {
	Name    string       `json:"name"`
	Options []optionJSON `json:"options"`
}

type optionJSON struct {
	Value         string          `json:"value"`
	PriceModifier decimal.Decimal `json:"priceModifier"`
	Stock         *int64          `json:"stock"`
	SKU           string          `json:"sku"`
}

type couponJSON struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discountType"`
	Value        decimal.Decimal `json:"value"`
	MinCartTotal decimal.Decimal `json:"minCartTotal"`
	MaxDiscount  decimal.Decimal `json:"maxDiscount"`
	ExpiryDate   time.Time       `json:"expiryDate"`
	UsageLimit   int32           `json:"usageLimit"`
	Active       bool            `json:"active"`
	ProductID    string          `json:"productId"`
	Category     string          `json:"category"`
}

const upsertStoreSQL = `
INSERT INTO stores (id, name)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

const upsertUserSQL = `
INSERT INTO users (id, role)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role`

const upsertProductSQL = `
INSERT INTO products (
    id, store_id, name, base_price, discount_price,
    discount_start, discount_end, category, image, stock, is_deleted
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE)
ON CONFLICT (id) DO UPDATE SET
    store_id       = EXCLUDED.store_id,
    name           = EXCLUDED.name,
    base_price     = EXCLUDED.base_price,
    discount_price = EXCLUDED.discount_price,
    discount_start = EXCLUDED.discount_start,
    discount_end   = EXCLUDED.discount_end,
    category       = EXCLUDED.category,
    image          = EXCLUDED.image,
    stock          = EXCLUDED.stock,
    is_deleted     = FALSE`

const upsertVariantSQL = `
INSERT INTO product_variants (id, product_id, name, is_deleted)
VALUES ($1, $2, $3, FALSE)
ON CONFLICT (product_id, name) DO UPDATE SET is_deleted = FALSE
RETURNING id`

const upsertOptionSQL = `
INSERT INTO variant_options (id, variant_id, value, price_modifier, stock, sku)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (variant_id, value) DO UPDATE SET
    price_modifier = EXCLUDED.price_modifier,
    stock          = EXCLUDED.stock,
    sku            = EXCLUDED.sku`

const upsertCouponSQL = `
INSERT INTO coupons (
    code, discount_type, value, min_cart_total, max_discount,
    expiry_date, usage_limit, active, product_id, category
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (code) DO UPDATE SET
    discount_type  = EXCLUDED.discount_type,
    value          = EXCLUDED.value,
    min_cart_total = EXCLUDED.min_cart_total,
    max_discount   = EXCLUDED.max_discount,
    expiry_date    = EXCLUDED.expiry_date,
    usage_limit    = EXCLUDED.usage_limit,
    active         = EXCLUDED.active,
    product_id     = EXCLUDED.product_id,
    category       = EXCLUDED.category`

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedStores(ctx, pool, catalog.Stores); err != nil {
		return errors.Wrap(err, "seed stores")
	}
	if err := seedUsers(ctx, pool, catalog.Users); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedProducts(ctx, pool, catalog.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool, catalog.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedStores(ctx context.Context, pool *pgxpool.Pool, stores []storeJSON) error {
	slog.Info("upserting stores", slog.Int("count", len(stores)))

	for _, s := range stores {
		if _, err := pool.Exec(ctx, upsertStoreSQL, s.ID, s.Name); err != nil {
			return errors.Wrapf(err, "upsert store %s", s.ID)
		}
	}
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, users []userJSON) error {
	slog.Info("upserting users", slog.Int("count", len(users)))

	for _, u := range users {
		role := u.Role
		if role == "" {
			role = "user"
		}
		if _, err := pool.Exec(ctx, upsertUserSQL, u.ID, role); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.StoreID, p.Name, p.BasePrice, p.DiscountPrice,
			p.DiscountStart, p.DiscountEnd, p.Category, p.Image, p.Stock,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for _, v := range p.Variants {
			var variantID string
			err := pool.QueryRow(ctx, upsertVariantSQL, uuid.NewString(), p.ID, v.Name).Scan(&variantID)
			if err != nil {
				return errors.Wrapf(err, "upsert variant %s of product %s", v.Name, p.ID)
			}
			for _, o := range v.Options {
				_, err := pool.Exec(ctx, upsertOptionSQL,
					uuid.NewString(), variantID, o.Value, o.PriceModifier, o.Stock, o.SKU,
				)
				if err != nil {
					return errors.Wrapf(err, "upsert option %s of variant %s", o.Value, v.Name)
				}
			}
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.Code, c.DiscountType, c.Value, c.MinCartTotal, c.MaxDiscount,
			c.ExpiryDate, c.UsageLimit, c.Active, c.ProductID, c.Category,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code))
	}
	return nil
}
