package service

import (
	"context"

	"foobar/internal/database"
	"foobar/internal/models"

	"github.com/rs/zerolog"
)

// ProductService is a thin layer over product storage; the interesting
// stock logic lives in purchases, deliveries and stock-taking.
type ProductService struct {
	db     *database.DB
	logger *zerolog.Logger
}

func NewProductService(db *database.DB, logger *zerolog.Logger) *ProductService {
	return &ProductService{db: db, logger: logger}
}

func (s *ProductService) Create(ctx context.Context, product *models.Product) error {
	if err := s.db.CreateProduct(ctx, product); err != nil {
		return err
	}
	s.logger.Info().Str("product_id", product.ID).Str("code", product.Code).Msg("Product created")
	return nil
}

func (s *ProductService) Update(ctx context.Context, product *models.Product) error {
	return s.db.UpdateProduct(ctx, product)
}

func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.db.GetProduct(ctx, id)
}

func (s *ProductService) GetByCode(ctx context.Context, code string) (*models.Product, error) {
	return s.db.GetProductByCode(ctx, code)
}

func (s *ProductService) List(ctx context.Context, includeInactive bool) ([]models.Product, error) {
	return s.db.ListProducts(ctx, includeInactive)
}

func (s *ProductService) CreateCategory(ctx context.Context, name string) (*models.ProductCategory, error) {
	return s.db.CreateCategory(ctx, name)
}

func (s *ProductService) ListCategories(ctx context.Context) ([]models.ProductCategory, error) {
	return s.db.ListCategories(ctx)
}

// SetBaseStockLevel records the level a refill order tops a product up to.
func (s *ProductService) SetBaseStockLevel(ctx context.Context, productID string, level int64) error {
	if _, err := s.db.GetProduct(ctx, productID); err != nil {
		return err
	}
	return s.db.SetBaseStockLevel(ctx, productID, level)
}
