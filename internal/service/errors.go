package service

import (
	"errors"
	"fmt"
)

// 结算链路的错误分类。签名错误和库存不足是终态，绝不重试；
// 事务冲突在内部重试耗尽后才以 ErrTransientConflict 暴露给调用方。
var (
	ErrSignatureMismatch = errors.New("支付签名校验失败")
	ErrOrderNotFound     = errors.New("订单不存在")
	ErrProductNotFound   = errors.New("商品不存在或已下线")
	ErrAmountMismatch    = errors.New("订单金额与商品价格不符")
	ErrTransientConflict = errors.New("库存竞争激烈，请稍后重试")
	ErrInvalidOrderState = errors.New("订单状态不允许该操作")
)

// InsufficientStockError 库存不足，携带具体是哪个商品不够
type InsufficientStockError struct {
	ProductID int64
	Title     string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("商品 %q 库存不足：需要 %d，剩余 %d", e.Title, e.Requested, e.Available)
}

// IsInsufficientStock 判断是否库存不足错误
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
