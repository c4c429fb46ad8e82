package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	// 与网关文档约定的格式逐位对齐：hex(HMAC-SHA256(secret, orderID + "|" + paymentID))
	got := Sign("rzp_test_secret", "order_Nxw7e1yH", "pay_K3k9vQ2d")
	assert.Equal(t, "a0cf7b544af70cb97d8bee9f80e06063dc6c6945ed362d6af5fa92c40d413176", got)
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")
	assert.True(t, VerifySignature("secret", "order_1", "pay_1", sig))
}

func TestVerifySignature_TamperedBit(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")

	// 翻转签名的任意一位都必须被拒绝
	tampered := []byte(sig)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", string(tampered)))
}

func TestVerifySignature_WrongInputs(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")

	assert.False(t, VerifySignature("secret", "order_2", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_2", sig))
	assert.False(t, VerifySignature("other-secret", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", ""))
}
