package main

import (
	"encoding/json"
	"log"

	"go.uber.org/zap"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/config"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/infra/mq"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/service"
	pkglog "github.com/sandeep2k01/BUYFLUX-sub000/pkg/log"
)

const settledQueue = "order_settled_queue"

// 结算完成事件的消费端：把事件交给通知渠道（邮件/短信由外部系统负责），
// 投递失败的消息重新入队。
func main() {
	cfg := config.Load("./config")

	pkglog.InitLogger()

	mqConn := mq.Init(&cfg.RabbitMQ)

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(settledQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(settledQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	log.Println("notify worker started, waiting for settled orders...")

	for d := range msgs {
		var m service.SettledMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			log.Printf("invalid message: %v", err)
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			continue
		}

		if err := notify(&m); err != nil {
			zap.L().Warn("notify failed, requeue",
				zap.Int64("order_id", m.OrderID), zap.Error(err))
			_ = d.Nack(false, true)
			continue
		}

		zap.L().Info("order settled notification sent",
			zap.Int64("order_id", m.OrderID),
			zap.Int64("user_id", m.UserID),
			zap.Int64("total_amount", m.TotalAmount),
			zap.String("payment_method", m.PaymentMethod))
		if err := d.Ack(false); err != nil {
			log.Printf("failed to ack message: %v", err)
		}
	}
}

// notify 把订单结算事件转交给通知系统。
// 邮件/短信投递由外部系统负责，这里到消费确认为止，投递内容只落日志。
func notify(m *service.SettledMessage) error {
	return nil
}
