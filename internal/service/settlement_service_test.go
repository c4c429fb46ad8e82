package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/order"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/product"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/user"
)

// newTestDB 每个测试一个独立的内存库（共享缓存，保证连接池里看到同一份数据）
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&user.User{}, &product.Product{}, &order.Order{}, &order.Item{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price, stock int64) *product.Product {
	t.Helper()
	p := &product.Product{Name: name, Price: price, Stock: stock, Status: 1}
	require.NoError(t, db.Create(p).Error)
	return p
}

// seedPendingOrder 预置一笔等待支付校验的订单
func seedPendingOrder(t *testing.T, db *gorm.DB, userID int64, gwOrderID string, items []order.Item) *order.Order {
	t.Helper()
	var total int64
	for _, it := range items {
		total += it.UnitPrice * it.Quantity
	}
	o := &order.Order{
		UserID:         userID,
		Items:          items,
		TotalAmount:    total,
		Currency:       "INR",
		Status:         order.StatusPendingPayment,
		PaymentStatus:  order.PaymentPending,
		PaymentMethod:  order.MethodRazorpay,
		GatewayOrderID: gwOrderID,
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

func stockOf(t *testing.T, db *gorm.DB, productID int64) int64 {
	t.Helper()
	var p product.Product
	require.NoError(t, db.First(&p, productID).Error)
	return p.Stock
}

func reloadOrder(t *testing.T, db *gorm.DB, id int64) *order.Order {
	t.Helper()
	var o order.Order
	require.NoError(t, db.Preload("Items").First(&o, id).Error)
	return &o
}

func TestSettleGatewayPayment_Success(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Kurta", 60000, 5)
	o := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 2},
	})

	svc := NewSettlementService(db, nil)
	err := svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1")
	require.NoError(t, err)

	assert.Equal(t, int64(3), stockOf(t, db, p.ID))

	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, order.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)
	assert.Equal(t, "sig_1", got.GatewaySignature)
}

func TestSettleGatewayPayment_InsufficientStock(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Saree", 250000, 1)
	o := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 2},
	})

	svc := NewSettlementService(db, nil)
	err := svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1")

	ise, ok := IsInsufficientStock(err)
	require.True(t, ok, "expected insufficient stock, got %v", err)
	assert.Equal(t, p.ID, ise.ProductID)
	assert.Equal(t, "Saree", ise.Title)
	assert.Equal(t, int64(2), ise.Requested)
	assert.Equal(t, int64(1), ise.Available)

	// 库存和订单都保持原状
	assert.Equal(t, int64(1), stockOf(t, db, p.ID))
	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.StatusPendingPayment, got.Status)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)
}

// 多行订单中任意一行不够，整单回滚，前面的行也不能被扣掉
func TestSettleGatewayPayment_Atomicity(t *testing.T) {
	db := newTestDB(t)
	p1 := seedProduct(t, db, "Shirt", 50000, 10)
	p2 := seedProduct(t, db, "Shoes", 90000, 1)
	o := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p1.ID, Title: p1.Name, UnitPrice: p1.Price, Quantity: 3},
		{ProductID: p2.ID, Title: p2.Name, UnitPrice: p2.Price, Quantity: 2},
	})

	svc := NewSettlementService(db, nil)
	err := svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1")

	_, ok := IsInsufficientStock(err)
	require.True(t, ok)

	assert.Equal(t, int64(10), stockOf(t, db, p1.ID))
	assert.Equal(t, int64(1), stockOf(t, db, p2.ID))
	assert.Equal(t, order.StatusPendingPayment, reloadOrder(t, db, o.ID).Status)
}

// 同一笔支付重复结算：库存只扣一次，两次调用都返回成功
func TestSettleGatewayPayment_Idempotent(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Kurta", 60000, 5)
	o := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 1},
	})

	svc := NewSettlementService(db, nil)
	require.NoError(t, svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1"))
	require.NoError(t, svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1"))

	assert.Equal(t, int64(4), stockOf(t, db, p.ID))
}

// 已结算订单换一个支付号再来，按状态冲突拒绝
func TestSettleGatewayPayment_DifferentPaymentRejected(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Kurta", 60000, 5)
	o := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 1},
	})

	svc := NewSettlementService(db, nil)
	require.NoError(t, svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1"))

	err := svc.SettleGatewayPayment(context.Background(), o.ID, "pay_2", "sig_2")
	assert.ErrorIs(t, err, ErrInvalidOrderState)
	assert.Equal(t, int64(4), stockOf(t, db, p.ID))
}

func TestSettleGatewayPayment_OrderNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil)
	err := svc.SettleGatewayPayment(context.Background(), 404, "pay_1", "sig_1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// 最后一件商品被两笔订单抢：先到者结算成功，后到者库存不足，不会超卖
func TestSettleGatewayPayment_LastUnitRace(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Limited Watch", 500000, 1)
	o1 := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 1},
	})
	o2 := seedPendingOrder(t, db, 2, "order_gw2", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 1},
	})

	svc := NewSettlementService(db, nil)
	require.NoError(t, svc.SettleGatewayPayment(context.Background(), o1.ID, "pay_1", "sig_1"))

	err := svc.SettleGatewayPayment(context.Background(), o2.ID, "pay_2", "sig_2")
	_, ok := IsInsufficientStock(err)
	require.True(t, ok)

	assert.Equal(t, int64(0), stockOf(t, db, p.ID))
	assert.Equal(t, order.StatusPaid, reloadOrder(t, db, o1.ID).Status)
	assert.Equal(t, order.StatusPendingPayment, reloadOrder(t, db, o2.ID).Status)
}

// 结算后改商品价格，订单行的快照价不能跟着变
func TestSettleGatewayPayment_PriceSnapshotStable(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Kurta", 60000, 5)
	o := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: 60000, Quantity: 2},
	})

	// 下单后商品涨价
	require.NoError(t, db.Model(&product.Product{}).Where("id = ?", p.ID).Update("price", int64(99900)).Error)

	svc := NewSettlementService(db, nil)
	require.NoError(t, svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1"))

	got := reloadOrder(t, db, o.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(60000), got.Items[0].UnitPrice)
	assert.Equal(t, int64(120000), got.TotalAmount)
}

// 同一商品拆成多行、合计超出库存：逐行看都够但合计不够，
// 必须按库存不足终态拒绝，而不是当成事务竞争去重试
func TestSettleGatewayPayment_DuplicateLinesExceedStock(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Kurta", 60000, 3)
	o := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 2},
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 2},
	})

	svc := NewSettlementService(db, nil)
	err := svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1")

	ise, ok := IsInsufficientStock(err)
	require.True(t, ok, "expected insufficient stock, got %v", err)
	assert.NotErrorIs(t, err, ErrTransientConflict)
	assert.Equal(t, p.ID, ise.ProductID)
	assert.Equal(t, "Kurta", ise.Title)
	assert.Equal(t, int64(4), ise.Requested)
	assert.Equal(t, int64(3), ise.Available)

	assert.Equal(t, int64(3), stockOf(t, db, p.ID))
	assert.Equal(t, order.StatusPendingPayment, reloadOrder(t, db, o.ID).Status)
}

// 同一商品拆成多行、合计在库存之内：正常结算，只扣合计数量
func TestSettleGatewayPayment_DuplicateLinesWithinStock(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Kurta", 60000, 5)
	o := seedPendingOrder(t, db, 1, "order_gw1", []order.Item{
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 2},
		{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 2},
	})

	svc := NewSettlementService(db, nil)
	require.NoError(t, svc.SettleGatewayPayment(context.Background(), o.ID, "pay_1", "sig_1"))

	assert.Equal(t, int64(1), stockOf(t, db, p.ID))
	assert.Equal(t, order.StatusPaid, reloadOrder(t, db, o.ID).Status)
}

func TestPlaceCodOrder_Success(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Kurta", 60000, 5)

	o := &order.Order{
		UserID:        7,
		Currency:      "INR",
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		PaymentMethod: order.MethodCOD,
		TotalAmount:   120000,
		Items: []order.Item{
			{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 2},
		},
	}

	svc := NewSettlementService(db, nil)
	require.NoError(t, svc.PlaceCodOrder(context.Background(), o))
	require.NotZero(t, o.ID)

	assert.Equal(t, int64(3), stockOf(t, db, p.ID))
	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)
	assert.Equal(t, order.MethodCOD, got.PaymentMethod)
}

// 库存不足时货到付款不能留下订单记录
func TestPlaceCodOrder_InsufficientStockLeavesNoOrder(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "Kurta", 60000, 1)

	o := &order.Order{
		UserID:        7,
		Currency:      "INR",
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		PaymentMethod: order.MethodCOD,
		TotalAmount:   180000,
		Items: []order.Item{
			{ProductID: p.ID, Title: p.Name, UnitPrice: p.Price, Quantity: 3},
		},
	}

	svc := NewSettlementService(db, nil)
	err := svc.PlaceCodOrder(context.Background(), o)
	_, ok := IsInsufficientStock(err)
	require.True(t, ok)

	assert.Equal(t, int64(1), stockOf(t, db, p.ID))
	var count int64
	require.NoError(t, db.Model(&order.Order{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestIsRetryableTxError(t *testing.T) {
	assert.True(t, isRetryableTxError(errStockContended))
	assert.True(t, isRetryableTxError(fmt.Errorf("wrap: %w", errStockContended)))
	assert.False(t, isRetryableTxError(ErrOrderNotFound))
	assert.False(t, isRetryableTxError(errors.New("random")))
	assert.False(t, isRetryableTxError(&InsufficientStockError{Title: "x"}))
}
