package service

import (
	"context"
	"errors"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/product"
)

// ProductService 商品查询与后台维护。
// 注意这里绝不改 Stock 字段的相对值——库存扣减只属于结算事务，
// 后台只能整体设置盘点后的新库存。
type ProductService struct {
	repo product.Repository
}

// NewProductService 创建商品服务
func NewProductService(repo product.Repository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) ListAll(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListAll(ctx)
}

func (s *ProductService) ListOnline(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListOnline(ctx)
}

func (s *ProductService) ListByCategory(ctx context.Context, category string) ([]*product.Product, error) {
	return s.repo.ListByCategory(ctx, category)
}

func (s *ProductService) Create(ctx context.Context, p *product.Product) error {
	if p.Stock < 0 {
		return errors.New("库存不能为负数")
	}
	return s.repo.Create(ctx, p)
}

func (s *ProductService) Update(ctx context.Context, p *product.Product) error {
	if p.Stock < 0 {
		return errors.New("库存不能为负数")
	}
	return s.repo.Update(ctx, p)
}

// SetStock 盘点后整体设置库存（后台用）
func (s *ProductService) SetStock(ctx context.Context, id, stock int64) (*product.Product, error) {
	if stock < 0 {
		return nil, errors.New("库存不能为负数")
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Stock = stock
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
