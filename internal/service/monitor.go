package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，用于统计结算链路的错误和性能指标
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors      int64
	MQErrors         int64
	DBErrors         int64
	GatewayErrors    int64
	SignatureRejects int64 // 签名校验失败次数，疑似欺诈信号

	// 结算统计
	IntentRequests    int64
	VerifyRequests    int64
	SettleSuccess     int64
	SettleConflicts   int64
	InsufficientStock int64
	CodOrders         int64

	// 时间统计
	LastGatewayError    time.Time
	LastSignatureReject time.Time
	LastSettleTime      time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
}

// RecordGatewayError 记录网关错误
func (m *Monitor) RecordGatewayError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GatewayErrors++
	m.LastGatewayError = time.Now()
}

// RecordSignatureReject 记录签名校验失败
func (m *Monitor) RecordSignatureReject() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignatureRejects++
	m.LastSignatureReject = time.Now()
}

// RecordIntentRequest 记录支付意向请求
func (m *Monitor) RecordIntentRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IntentRequests++
}

// RecordVerifyRequest 记录支付校验请求
func (m *Monitor) RecordVerifyRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VerifyRequests++
}

// RecordSettleSuccess 记录结算成功
func (m *Monitor) RecordSettleSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SettleSuccess++
	m.LastSettleTime = time.Now()
}

// RecordSettleConflict 记录结算事务冲突（重试前）
func (m *Monitor) RecordSettleConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SettleConflicts++
}

// RecordInsufficientStock 记录库存不足拒单
func (m *Monitor) RecordInsufficientStock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsufficientStock++
}

// RecordCodOrder 记录货到付款下单
func (m *Monitor) RecordCodOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CodOrders++
}

// Snapshot 返回当前指标快照（后台监控页用）
func (m *Monitor) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"redis_errors":          m.RedisErrors,
		"mq_errors":             m.MQErrors,
		"db_errors":             m.DBErrors,
		"gateway_errors":        m.GatewayErrors,
		"signature_rejects":     m.SignatureRejects,
		"intent_requests":       m.IntentRequests,
		"verify_requests":       m.VerifyRequests,
		"settle_success":        m.SettleSuccess,
		"settle_conflicts":      m.SettleConflicts,
		"insufficient_stock":    m.InsufficientStock,
		"cod_orders":            m.CodOrders,
		"last_gateway_error":    m.LastGatewayError,
		"last_signature_reject": m.LastSignatureReject,
		"last_settle_time":      m.LastSettleTime,
	}
}
