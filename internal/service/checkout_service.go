package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/config"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/order"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/product"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/gateway"
)

const (
	redisVerifiedKey = "checkout:verified:%s" // gatewayPaymentID
	redisFraudKey    = "checkout:fraud:%d"    // userID

	verifiedMarkExpireSeconds = 86400
	fraudMarkExpireSeconds    = 86400

	// 客户端金额和服务端重算金额允许的最大偏差（派萨），覆盖小数转换的舍入
	amountTolerance = 1
)

// IntentItem 客户端提交的购物车行
type IntentItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// IntentRequest 创建支付意向的入参，Amount 为主单位金额（卢比）
type IntentRequest struct {
	Amount          float64      `json:"amount"`
	Currency        string       `json:"currency"`
	Items           []IntentItem `json:"items"`
	ShippingAddress string       `json:"shipping_address"`
}

// IntentResult 创建支付意向的出参，Amount 为最小单位金额（派萨）
type IntentResult struct {
	OrderID        int64  `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	GatewayKeyID   string `json:"gateway_key_id"`
}

// CodRequest 货到付款下单入参
type CodRequest struct {
	Items           []IntentItem `json:"items"`
	ShippingAddress string       `json:"shipping_address"`
	TotalAmount     float64      `json:"total_amount"`
}

// CheckoutService 结算入口：支付意向、支付校验闸门、货到付款下单
type CheckoutService struct {
	productRepo product.Repository
	orderRepo   order.Repository
	settlement  *SettlementService
	gw          gateway.PaymentGateway
	secret      string // 网关签名密钥
	redis       radix.Client
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(
	productRepo product.Repository,
	orderRepo order.Repository,
	settlement *SettlementService,
	gw gateway.PaymentGateway,
	rzpCfg *config.RazorpayConfig,
	redisClient radix.Client,
) *CheckoutService {
	return &CheckoutService{
		productRepo: productRepo,
		orderRepo:   orderRepo,
		settlement:  settlement,
		gw:          gw,
		secret:      rzpCfg.KeySecret,
		redis:       redisClient,
	}
}

// ToMinorUnits 主单位金额换算成最小单位（1 卢比 = 100 派萨），四舍五入消掉浮点尾差
func ToMinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}

// snapshotItems 以商品表的可信价格为准生成订单行快照。
// 客户端只提交 (productID, quantity)，单价一律从库里取，下单后不再回读。
func (s *CheckoutService) snapshotItems(ctx context.Context, items []IntentItem) ([]order.Item, int64, error) {
	if len(items) == 0 {
		return nil, 0, errors.New("订单不能为空")
	}

	snapshot := make([]order.Item, 0, len(items))
	var total int64
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, 0, fmt.Errorf("商品 %d 购买数量无效", it.ProductID)
		}
		p, err := s.productRepo.GetByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, ErrProductNotFound
			}
			return nil, 0, err
		}
		if p.Status != 1 {
			return nil, 0, ErrProductNotFound
		}
		snapshot = append(snapshot, order.Item{
			ProductID: p.ID,
			Title:     p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
		total += p.Price * it.Quantity
	}
	return snapshot, total, nil
}

// checkClaimedAmount 校验客户端声称的总价和服务端重算结果的偏差。
// 金额由服务端说了算，客户端的数字只用来兜底发现前后端价格不同步。
func checkClaimedAmount(claimedMajor float64, serverTotal int64) error {
	claimed := ToMinorUnits(claimedMajor)
	diff := claimed - serverTotal
	if diff < -amountTolerance || diff > amountTolerance {
		return fmt.Errorf("%w：客户端 %d，服务端 %d", ErrAmountMismatch, claimed, serverTotal)
	}
	return nil
}

// CreateOrderIntent 创建支付意向：
// 先在网关开单，成功后才落本地 PENDING_PAYMENT 订单，网关失败时不留半截记录。
func (s *CheckoutService) CreateOrderIntent(ctx context.Context, userID int64, req *IntentRequest) (*IntentResult, error) {
	GetMonitor().RecordIntentRequest()

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	items, total, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if err := checkClaimedAmount(req.Amount, total); err != nil {
		return nil, err
	}

	// 每次尝试都用新 receipt，避免网关把重试当成同一笔单重复收款
	receipt := "rcpt_" + uuid.NewString()
	gwOrderID, err := s.gw.CreateOrder(ctx, total, currency, receipt)
	if err != nil {
		GetMonitor().RecordGatewayError()
		zap.L().Error("gateway create order failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("创建支付单失败: %w", err)
	}

	o := &order.Order{
		UserID:          userID,
		Items:           items,
		TotalAmount:     total,
		Currency:        currency,
		Status:          order.StatusPendingPayment,
		PaymentStatus:   order.PaymentPending,
		PaymentMethod:   order.MethodRazorpay,
		ShippingAddress: req.ShippingAddress,
		GatewayOrderID:  gwOrderID,
	}
	if err := s.orderRepo.Create(ctx, o); err != nil {
		GetMonitor().RecordDBError()
		return nil, fmt.Errorf("保存订单失败: %w", err)
	}

	return &IntentResult{
		OrderID:        o.ID,
		GatewayOrderID: gwOrderID,
		Amount:         total,
		GatewayKeyID:   s.gw.KeyID(),
	}, nil
}

// VerifyPayment 支付校验闸门：重算签名通过后才碰任何持久状态。
// 这是订单从 PENDING_PAYMENT 进入 PAID 的唯一入口。
func (s *CheckoutService) VerifyPayment(ctx context.Context, userID, orderID int64, gatewayOrderID, gatewayPaymentID, signature string) error {
	GetMonitor().RecordVerifyRequest()

	if !gateway.VerifySignature(s.secret, gatewayOrderID, gatewayPaymentID, signature) {
		// 签名不对说明回调不是网关发的，记欺诈信号，终态失败，不重试
		GetMonitor().RecordSignatureReject()
		s.markFraudSignal(userID)
		zap.L().Warn("payment signature mismatch",
			zap.Int64("user_id", userID),
			zap.Int64("order_id", orderID),
			zap.String("gateway_order_id", gatewayOrderID))
		return ErrSignatureMismatch
	}

	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		GetMonitor().RecordDBError()
		return err
	}
	// 不是自己的订单、或网关单号对不上，一律按不存在处理，避免探测
	if o.UserID != userID || o.GatewayOrderID != gatewayOrderID {
		return ErrOrderNotFound
	}

	// 幂等快路径：同一笔支付已结算过，直接成功返回
	if o.PaymentStatus == order.PaymentCompleted && o.GatewayPaymentID == gatewayPaymentID {
		return nil
	}

	if err := s.settlement.SettleGatewayPayment(ctx, o.ID, gatewayPaymentID, signature); err != nil {
		return err
	}

	s.markVerified(gatewayPaymentID)
	return nil
}

// PlaceCodOrder 货到付款下单：跳过网关，直接进入结算事务
func (s *CheckoutService) PlaceCodOrder(ctx context.Context, userID int64, req *CodRequest) (*order.Order, error) {
	items, total, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if err := checkClaimedAmount(req.TotalAmount, total); err != nil {
		return nil, err
	}

	o := &order.Order{
		UserID:          userID,
		Items:           items,
		TotalAmount:     total,
		Currency:        "INR",
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentPending,
		PaymentMethod:   order.MethodCOD,
		ShippingAddress: req.ShippingAddress,
	}
	if err := s.settlement.PlaceCodOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// markVerified 在 Redis 里打上支付已结算标记，供运营排查重复回调
func (s *CheckoutService) markVerified(gatewayPaymentID string) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf(redisVerifiedKey, gatewayPaymentID)
	if err := s.redis.Do(radix.FlatCmd(nil, "SETEX", key, verifiedMarkExpireSeconds, 1)); err != nil {
		GetMonitor().RecordRedisError()
	}
}

// markFraudSignal 累计用户的签名失败次数，风控侧按这个计数拉黑
func (s *CheckoutService) markFraudSignal(userID int64) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf(redisFraudKey, userID)
	var count int
	if err := s.redis.Do(radix.Cmd(&count, "INCR", key)); err != nil {
		GetMonitor().RecordRedisError()
		return
	}
	if count == 1 {
		_ = s.redis.Do(radix.FlatCmd(nil, "EXPIRE", key, fraudMarkExpireSeconds))
	}
}
