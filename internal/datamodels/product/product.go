package product

import (
	"context"
	"time"
)

// Product 商品模型
// Price 单位为派萨（paise，1 卢比 = 100 派萨），避免浮点误差。
// Stock 是库存的唯一事实来源，只允许结算事务扣减。
type Product struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"size:512"`
	Price       int64  `gorm:"not null"`
	Stock       int64  `gorm:"not null;default:0"`
	Category    string `gorm:"size:32;index"`
	Status      int    `gorm:"index"` // 0:下线 1:正常
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	ListOnline(ctx context.Context) ([]*Product, error)
	ListByCategory(ctx context.Context, category string) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
