package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign 计算网关回调签名：hex(HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID))
// 该格式必须与网关侧逐位一致，不能改动分隔符和编码。
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 校验客户端转发的签名
// 用 hmac.Equal 做常数时间比较，防止通过响应耗时逐位猜测签名。
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
