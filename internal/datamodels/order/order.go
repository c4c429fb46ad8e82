package order

import (
	"context"
	"time"
)

// 订单状态
const (
	StatusPendingPayment = "PENDING_PAYMENT" // 已创建支付意向，等待网关回调
	StatusPending        = "PENDING"         // 货到付款，待发货
	StatusPaid           = "PAID"
	StatusShipped        = "SHIPPED"
	StatusDelivered      = "DELIVERED"
	StatusCancelled      = "CANCELLED"
)

// 支付状态
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// 支付方式
const (
	MethodRazorpay = "razorpay"
	MethodCOD      = "cod"
)

// Item 订单行，UnitPrice 是下单时刻的快照价（派萨），
// 结算阶段不得回读商品表的实时价格。
type Item struct {
	ID        int64  `gorm:"primaryKey"`
	OrderID   int64  `gorm:"index;not null"`
	ProductID int64  `gorm:"index;not null"`
	Title     string `gorm:"size:128;not null"`
	UnitPrice int64  `gorm:"not null"`
	Quantity  int64  `gorm:"not null"`
	CreatedAt time.Time
}

// Order 订单模型
// 不变式：PaymentStatus == completed 时 Status 一定不是 PENDING_PAYMENT。
type Order struct {
	ID               int64     `gorm:"primaryKey"`
	UserID           int64     `gorm:"index;not null"`
	Items            []Item    `gorm:"foreignKey:OrderID"`
	TotalAmount      int64     `gorm:"not null"` // 派萨
	Currency         string    `gorm:"size:8;not null"`
	Status           string    `gorm:"size:32;index;not null"`
	PaymentStatus    string    `gorm:"size:16;index;not null"`
	PaymentMethod    string    `gorm:"size:16;not null"`
	ShippingAddress  string    `gorm:"size:512"`
	GatewayOrderID   string    `gorm:"size:64;index"`
	GatewayPaymentID string    `gorm:"size:64;index"`
	GatewaySignature string    `gorm:"size:128"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Repository 订单仓储接口
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}
