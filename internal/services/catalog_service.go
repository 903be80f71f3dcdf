package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"qrshop/internal/domain"
	"qrshop/internal/repos"
)

type CatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
}

func NewCatalogService(c *repos.CategoryRepo, p *repos.ProductRepo) *CatalogService {
	return &CatalogService{Cats: c, Prods: p}
}

func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.Cats.List(ctx)
}

func (s *CatalogService) Products(ctx context.Context, categoryID int64, limit, offset int) ([]domain.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 24
	}
	if offset < 0 {
		offset = 0
	}
	return s.Prods.List(ctx, categoryID, limit, offset)
}

func (s *CatalogService) Product(ctx context.Context, id int64) (domain.Product, domain.Availability, error) {
	p, err := s.Prods.Get(ctx, id)
	if err != nil {
		return p, domain.Availability{}, err
	}
	return p, domain.AvailabilityOf(p.Stock), nil
}

type CategoryInput struct {
	Name        string
	Description string
}

func (in *CategoryInput) clean() error {
	in.Name, in.Description = strings.TrimSpace(in.Name), strings.TrimSpace(in.Description)
	if in.Name == "" || len(in.Name) > 100 {
		return domain.Invalid("name", "must be 1-100 characters")
	}
	return nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	if err := in.clean(); err != nil {
		return domain.Category{}, err
	}
	if err := s.uniqueCategory(ctx, in.Name, 0); err != nil {
		return domain.Category{}, err
	}
	id, err := s.Cats.Create(ctx, domain.Category{Name: in.Name, Description: in.Description})
	if err != nil {
		return domain.Category{}, err
	}
	return s.Cats.Get(ctx, id)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (domain.Category, error) {
	if err := in.clean(); err != nil {
		return domain.Category{}, err
	}
	if err := s.uniqueCategory(ctx, in.Name, id); err != nil {
		return domain.Category{}, err
	}
	if err := s.Cats.Update(ctx, domain.Category{ID: id, Name: in.Name, Description: in.Description}); err != nil {
		return domain.Category{}, err
	}
	return s.Cats.Get(ctx, id)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return s.Cats.Delete(ctx, id)
}

func (s *CatalogService) uniqueCategory(ctx context.Context, name string, id int64) error {
	taken, err := s.Cats.NameTaken(ctx, name, id)
	if err != nil {
		return err
	}
	if taken {
		return domain.Invalid("name", "is already in use")
	}
	return nil
}

type ProductInput struct {
	CategoryID  int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int // initial stock; ignored on update
	Image       string
}

func (s *CatalogService) checkProduct(ctx context.Context, in *ProductInput, id int64) error {
	in.Name, in.Description = strings.TrimSpace(in.Name), strings.TrimSpace(in.Description)
	switch {
	case in.Name == "" || len(in.Name) > 100:
		return domain.Invalid("name", "must be 1-100 characters")
	case len(in.Description) > 1000:
		return domain.Invalid("description", "must be at most 1000 characters")
	case in.Price.IsNegative():
		return domain.Invalid("price", "must not be negative")
	case in.Stock < 0:
		return domain.Invalid("stock", "must not be negative")
	}
	if _, err := s.Cats.Get(ctx, in.CategoryID); err != nil {
		if domain.IsNotFound(err) {
			return domain.Invalid("category_id", "unknown category")
		}
		return err
	}
	taken, err := s.Prods.NameTaken(ctx, in.Name, id)
	if err != nil {
		return err
	}
	if taken {
		return domain.Invalid("name", "is already in use")
	}
	return nil
}

func (in ProductInput) product(id int64) domain.Product {
	return domain.Product{
		ID:          id,
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
		Image:       in.Image,
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	if err := s.checkProduct(ctx, &in, 0); err != nil {
		return domain.Product{}, err
	}
	id, err := s.Prods.Create(ctx, in.product(0))
	if err != nil {
		return domain.Product{}, err
	}
	return s.Prods.Get(ctx, id)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in ProductInput) (domain.Product, error) {
	in.Stock = 0
	if err := s.checkProduct(ctx, &in, id); err != nil {
		return domain.Product{}, err
	}
	if err := s.Prods.Update(ctx, in.product(id)); err != nil {
		return domain.Product{}, err
	}
	return s.Prods.Get(ctx, id)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	return s.Prods.Delete(ctx, id)
}
