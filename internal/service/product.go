package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"minishop/internal/model"
)

// ProductService keeps a local copy of the sheet-managed catalog so the
// storefront keeps serving when the sheet is unreachable.
type ProductService struct {
	db     *sql.DB
	sheets *SheetClient
}

func NewProductService(db *sql.DB, sheets *SheetClient) *ProductService {
	return &ProductService{db: db, sheets: sheets}
}

// Sync pulls the catalog from the sheet and upserts it locally. Returns
// the number of products ingested.
func (s *ProductService) Sync(ctx context.Context) (int, error) {
	products, err := s.sheets.FetchProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch products: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, title, description, category, price, image_url, features, section, payment_slug, external_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				category = EXCLUDED.category,
				price = EXCLUDED.price,
				image_url = EXCLUDED.image_url,
				features = EXCLUDED.features,
				section = EXCLUDED.section,
				payment_slug = EXCLUDED.payment_slug,
				external_url = EXCLUDED.external_url
		`, p.ID, p.Title, p.Description, p.Category, p.Price, p.ImageURL,
			strings.Join(p.Features, ","), p.Section, p.PaymentSlug, p.ExternalURL)
		if err != nil {
			return 0, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return len(products), nil
}

func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, category, price, image_url, features, section, payment_slug, external_url
		FROM products
		ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var features string
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.Price, &p.ImageURL, &features, &p.Section, &p.PaymentSlug, &p.ExternalURL); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if features != "" {
			p.Features = strings.Split(features, ",")
		}
		products = append(products, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return products, nil
}
