package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/order"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/product"
)

const settledQueue = "order_settled_queue"

const (
	settleMaxAttempts = 3
	settleBaseBackoff = 50 * time.Millisecond
)

// 守护式扣减没命中任何行：读到的库存在写入前被并发事务抢走了，整个事务重来
var errStockContended = errors.New("stock row contended")

// SettledMessage 结算完成事件，通知侧（邮件等）从队列消费
type SettledMessage struct {
	OrderID       int64  `json:"order_id"`
	UserID        int64  `json:"user_id"`
	TotalAmount   int64  `json:"total_amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
}

// SettlementService 结算事务：把库存扣减和订单终态绑在同一个原子单元里。
// 库存只有这里会写，其他任何组件都只许读。
type SettlementService struct {
	db     *gorm.DB
	mqConn *amqp.Connection
}

// NewSettlementService 创建结算服务，mqConn 可以为 nil（测试场景不发事件）
func NewSettlementService(db *gorm.DB, mqConn *amqp.Connection) *SettlementService {
	return &SettlementService{db: db, mqConn: mqConn}
}

// SettleGatewayPayment 网关支付结算：库存扣减 + 订单置为 PAID，一荣俱荣一损俱损。
// 只能由支付校验闸门调用，这是订单离开 PENDING_PAYMENT 的唯一通道。
func (s *SettlementService) SettleGatewayPayment(ctx context.Context, orderID int64, gatewayPaymentID, signature string) error {
	var settled *order.Order

	err := s.runWithRetry(ctx, func(tx *gorm.DB) error {
		settled = nil

		var o order.Order
		if err := tx.Preload("Items").First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		// 幂等：同一笔支付被重复提交时，先到者已结算，后到者直接成功返回，
		// 库存只扣一次
		if o.PaymentStatus == order.PaymentCompleted {
			if o.GatewayPaymentID == gatewayPaymentID {
				return nil
			}
			return ErrInvalidOrderState
		}
		if o.Status != order.StatusPendingPayment {
			return ErrInvalidOrderState
		}

		if err := deductStock(tx, o.Items); err != nil {
			return err
		}

		if err := tx.Model(&order.Order{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
			"status":             order.StatusPaid,
			"payment_status":     order.PaymentCompleted,
			"gateway_payment_id": gatewayPaymentID,
			"gateway_signature":  signature,
		}).Error; err != nil {
			return err
		}

		o.Status = order.StatusPaid
		o.PaymentStatus = order.PaymentCompleted
		o.GatewayPaymentID = gatewayPaymentID
		o.GatewaySignature = signature
		settled = &o
		return nil
	})
	if err != nil {
		if _, ok := IsInsufficientStock(err); ok {
			GetMonitor().RecordInsufficientStock()
		}
		return err
	}

	if settled != nil {
		GetMonitor().RecordSettleSuccess()
		s.publishSettled(ctx, settled)
	}
	return nil
}

// PlaceCodOrder 货到付款结算：订单建档和库存扣减在同一个事务里完成，
// 没有先行的 PENDING_PAYMENT 记录
func (s *SettlementService) PlaceCodOrder(ctx context.Context, o *order.Order) error {
	err := s.runWithRetry(ctx, func(tx *gorm.DB) error {
		// 上一轮失败回滚后可能残留自增 ID，清掉再试
		o.ID = 0
		for i := range o.Items {
			o.Items[i].ID = 0
			o.Items[i].OrderID = 0
		}

		if err := deductStock(tx, o.Items); err != nil {
			return err
		}
		return tx.Create(o).Error
	})
	if err != nil {
		if _, ok := IsInsufficientStock(err); ok {
			GetMonitor().RecordInsufficientStock()
		}
		return err
	}

	GetMonitor().RecordCodOrder()
	GetMonitor().RecordSettleSuccess()
	s.publishSettled(ctx, o)
	return nil
}

// deductStock 先读后验再写：
//  1. 同一商品可能被拆成多行，先按商品聚合需求量再逐一读取当前库存，
//     任何一个商品不够就整体放弃，绝不做部分扣减；
//  2. 写入用 stock >= qty 的守护条件，读写间隙被并发事务抢走时命中 0 行，
//     以 errStockContended 触发整个事务重试。
func deductStock(tx *gorm.DB, items []order.Item) error {
	need := make(map[int64]int64, len(items))
	productIDs := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := need[it.ProductID]; !ok {
			productIDs = append(productIDs, it.ProductID)
		}
		need[it.ProductID] += it.Quantity
	}

	for _, id := range productIDs {
		var p product.Product
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		if p.Stock < need[id] {
			return &InsufficientStockError{
				ProductID: p.ID,
				Title:     p.Name,
				Requested: need[id],
				Available: p.Stock,
			}
		}
	}

	for _, id := range productIDs {
		res := tx.Model(&product.Product{}).
			Where("id = ? AND stock >= ?", id, need[id]).
			UpdateColumn("stock", gorm.Expr("stock - ?", need[id]))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStockContended
		}
	}
	return nil
}

// runWithRetry 带上限的事务重试：只重试瞬态冲突（守护扣减落空、InnoDB 死锁/锁超时），
// 业务性失败（库存不足、签名问题）原样返回。重试耗尽后以 ErrTransientConflict 暴露。
func (s *SettlementService) runWithRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := settleBaseBackoff
	var err error
	for attempt := 0; attempt < settleMaxAttempts; attempt++ {
		if attempt > 0 {
			GetMonitor().RecordSettleConflict()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !isRetryableTxError(err) {
			return err
		}
	}
	GetMonitor().RecordDBError()
	return fmt.Errorf("%w: %v", ErrTransientConflict, err)
}

func isRetryableTxError(err error) bool {
	if errors.Is(err, errStockContended) {
		return true
	}
	// 1213 死锁、1205 锁等待超时：InnoDB 已回滚本事务，重试即可
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}

func (s *SettlementService) publishSettled(ctx context.Context, o *order.Order) {
	if s.mqConn == nil {
		return
	}

	ch, err := s.mqConn.Channel()
	if err != nil {
		GetMonitor().RecordMQError()
		zap.L().Warn("open mq channel failed", zap.Error(err))
		return
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(settledQueue, true, false, false, false, nil); err != nil {
		GetMonitor().RecordMQError()
		zap.L().Warn("declare settled queue failed", zap.Error(err))
		return
	}

	body, err := json.Marshal(&SettledMessage{
		OrderID:       o.ID,
		UserID:        o.UserID,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		PaymentMethod: o.PaymentMethod,
	})
	if err != nil {
		return
	}

	err = ch.PublishWithContext(
		ctx,
		"",
		settledQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		GetMonitor().RecordMQError()
		zap.L().Warn("publish settled event failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}
