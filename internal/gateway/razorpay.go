package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/config"
)

// PaymentGateway 支付网关抽象
// CreateOrder 在网关侧开一笔支付意向，amount 单位是最小货币单位（派萨）。
// 同一 receipt 不会被重复下单，调用方每次尝试都要生成新的 receipt。
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
	KeyID() string
}

type razorpayClient struct {
	http  *resty.Client
	keyID string
}

// NewRazorpayClient 创建 Razorpay 下单客户端
func NewRazorpayClient(cfg *config.RazorpayConfig) PaymentGateway {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(10 * time.Second)
	return &razorpayClient{http: c, keyID: cfg.KeyID}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *razorpayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	var (
		out    createOrderResponse
		outErr gatewayError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&createOrderRequest{Amount: amount, Currency: currency, Receipt: receipt}).
		SetResult(&out).
		SetError(&outErr).
		Post("/v1/orders")
	if err != nil {
		return "", fmt.Errorf("gateway create order: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gateway create order: %s (%s)", outErr.Error.Description, outErr.Error.Code)
	}
	if out.ID == "" {
		return "", fmt.Errorf("gateway create order: empty order id in response")
	}
	return out.ID, nil
}

func (c *razorpayClient) KeyID() string {
	return c.keyID
}
