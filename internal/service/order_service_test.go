package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/order"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/repository/mysql"
)

func newOrderService(t *testing.T) (*OrderService, func(status string) int64) {
	t.Helper()
	db := newTestDB(t)
	svc := NewOrderService(mysql.NewOrderRepository(db))
	seed := func(status string) int64 {
		o := &order.Order{
			UserID:        1,
			Currency:      "INR",
			Status:        status,
			PaymentStatus: order.PaymentPending,
			PaymentMethod: order.MethodCOD,
		}
		require.NoError(t, db.Create(o).Error)
		return o.ID
	}
	return svc, seed
}

func TestUpdateStatus_LegalTransitions(t *testing.T) {
	svc, seed := newOrderService(t)
	ctx := context.Background()

	cases := []struct {
		from, to string
	}{
		{order.StatusPendingPayment, order.StatusCancelled},
		{order.StatusPending, order.StatusShipped},
		{order.StatusPending, order.StatusCancelled},
		{order.StatusPaid, order.StatusShipped},
		{order.StatusPaid, order.StatusCancelled},
		{order.StatusShipped, order.StatusDelivered},
	}
	for _, c := range cases {
		id := seed(c.from)
		assert.NoError(t, svc.UpdateStatus(ctx, id, c.to), "%s -> %s", c.from, c.to)
		got, err := svc.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, c.to, got.Status)
	}
}

func TestUpdateStatus_IllegalTransitions(t *testing.T) {
	svc, seed := newOrderService(t)
	ctx := context.Background()

	cases := []struct {
		from, to string
	}{
		// PAID 只能由支付校验闸门写入，后台流转改不出已支付
		{order.StatusPendingPayment, order.StatusPaid},
		{order.StatusPending, order.StatusPaid},
		{order.StatusPendingPayment, order.StatusShipped},
		{order.StatusDelivered, order.StatusCancelled},
		{order.StatusCancelled, order.StatusShipped},
		{order.StatusShipped, order.StatusCancelled},
	}
	for _, c := range cases {
		id := seed(c.from)
		err := svc.UpdateStatus(ctx, id, c.to)
		assert.ErrorIs(t, err, ErrInvalidOrderState, "%s -> %s", c.from, c.to)
		got, gerr := svc.GetByID(ctx, id)
		require.NoError(t, gerr)
		assert.Equal(t, c.from, got.Status)
	}
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	svc, _ := newOrderService(t)
	err := svc.UpdateStatus(context.Background(), 404, order.StatusShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
