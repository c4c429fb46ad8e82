package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/order"
)

// 后台允许的状态流转。PAID 不在任何目标集合里：
// 订单进入 PAID 只能走支付校验闸门，后台改不出一个已支付订单。
var allowedTransitions = map[string][]string{
	order.StatusPendingPayment: {order.StatusCancelled},
	order.StatusPending:        {order.StatusShipped, order.StatusCancelled},
	order.StatusPaid:           {order.StatusShipped, order.StatusCancelled},
	order.StatusShipped:        {order.StatusDelivered},
}

// OrderService 订单查询与后台状态流转
type OrderService struct {
	repo order.Repository
}

// NewOrderService 创建订单服务
func NewOrderService(repo order.Repository) *OrderService {
	return &OrderService{repo: repo}
}

// GetByID 查询订单
func (s *OrderService) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// ListByUser 查询用户自己的订单
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListRecent 查询最新的订单记录
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.repo.ListRecent(ctx, limit)
}

// UpdateStatus 后台改订单状态（发货/妥投/取消），按流转表校验合法性。
// 取消不回补库存，退货回补是独立流程。
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, next string) error {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, allowed := range allowedTransitions[o.Status] {
		if next == allowed {
			return s.repo.UpdateStatus(ctx, id, next)
		}
	}
	return fmt.Errorf("%w：%s -> %s", ErrInvalidOrderState, o.Status, next)
}
