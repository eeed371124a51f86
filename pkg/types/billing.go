// Package types 提供订阅计费与零知识证明相关的业务数据结构
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CurrencyKind 币种类别
type CurrencyKind string

const (
	CurrencyKindFiat   CurrencyKind = "fiat"   // 法币，Code 为 ISO 4217 代码
	CurrencyKindCrypto CurrencyKind = "crypto" // 原生加密货币，Code 为符号
	CurrencyKindToken  CurrencyKind = "token"  // 合约代币，Code 为合约地址
)

// String 返回币种类别的字符串表示
func (k CurrencyKind) String() string {
	return string(k)
}

// IsValid 验证币种类别是否有效
func (k CurrencyKind) IsValid() bool {
	return k == CurrencyKindFiat || k == CurrencyKindCrypto || k == CurrencyKindToken
}

// Currency 币种
type Currency struct {
	Kind CurrencyKind `json:"kind"`
	Code string       `json:"code"`
}

// 常用币种
var (
	CurrencyUSD = Fiat("USD")
	CurrencyEUR = Fiat("EUR")
	CurrencyBTC = Crypto("BTC")
	CurrencyETH = Crypto("ETH")
)

// Fiat 创建法币币种
func Fiat(code string) Currency {
	return Currency{Kind: CurrencyKindFiat, Code: strings.ToUpper(code)}
}

// Crypto 创建加密货币币种
func Crypto(symbol string) Currency {
	return Currency{Kind: CurrencyKindCrypto, Code: strings.ToUpper(symbol)}
}

// Token 创建合约代币币种
func Token(contract string) Currency {
	return Currency{Kind: CurrencyKindToken, Code: contract}
}

// String 返回 "kind:code" 形式
func (c Currency) String() string {
	return fmt.Sprintf("%s:%s", c.Kind, c.Code)
}

// IsValid 验证币种
func (c Currency) IsValid() bool {
	return c.Kind.IsValid() && c.Code != ""
}

// maxAmountScale 金额最大小数位数
const maxAmountScale = 18

var (
	// ErrNegativeAmount 金额为负
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrMalformedAmount 金额格式错误
	ErrMalformedAmount = errors.New("malformed amount")
)

// Amount 定点小数金额
//
// 数值 = Mantissa / 10^Scale。Mantissa 直接作为电路见证值使用，
// 因此金额必须能以 64 位无符号整数表示。
type Amount struct {
	Currency Currency `json:"currency"`
	Mantissa uint64   `json:"mantissa"`
	Scale    uint8    `json:"scale"`
}

// NewAmount 以尾数和小数位数创建金额
func NewAmount(currency Currency, mantissa uint64, scale uint8) (Amount, error) {
	if !currency.IsValid() {
		return Amount{}, fmt.Errorf("%w: invalid currency %q", ErrMalformedAmount, currency.String())
	}
	if scale > maxAmountScale {
		return Amount{}, fmt.Errorf("%w: scale %d exceeds %d", ErrMalformedAmount, scale, maxAmountScale)
	}
	return Amount{Currency: currency, Mantissa: mantissa, Scale: scale}, nil
}

// ParseAmount 解析十进制字符串金额，例如 "29.99"
func ParseAmount(value string, currency Currency) (Amount, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Amount{}, fmt.Errorf("%w: empty value", ErrMalformedAmount)
	}
	if strings.HasPrefix(value, "-") {
		return Amount{}, ErrNegativeAmount
	}
	value = strings.TrimPrefix(value, "+")

	intPart, fracPart, hasFrac := strings.Cut(value, ".")
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && fracPart == "" {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, value)
	}
	if len(fracPart) > maxAmountScale {
		return Amount{}, fmt.Errorf("%w: too many decimal places in %q", ErrMalformedAmount, value)
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, value)
		}
	}

	mantissa, err := strconv.ParseUint(intPart+fracPart, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q out of range", ErrMalformedAmount, value)
	}
	return NewAmount(currency, mantissa, uint8(len(fracPart)))
}

// MustParseAmount 解析金额，失败时 panic（仅用于常量与测试）
func MustParseAmount(value string, currency Currency) Amount {
	a, err := ParseAmount(value, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// IsPositive 金额是否大于零
func (a Amount) IsPositive() bool {
	return a.Mantissa > 0
}

// Value 以字符串形式返回十进制数值（不含币种）
func (a Amount) Value() string {
	digits := strconv.FormatUint(a.Mantissa, 10)
	if a.Scale == 0 {
		return digits
	}
	scale := int(a.Scale)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	return digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
}

// Float64 近似浮点值，仅用于展示
func (a Amount) Float64() float64 {
	return float64(a.Mantissa) / math.Pow10(int(a.Scale))
}

// String 返回 "29.99 USD" 形式
func (a Amount) String() string {
	return a.Value() + " " + a.Currency.Code
}

// MarshalJSON 金额以十进制字符串输出，避免精度丢失
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Currency Currency `json:"currency"`
		Value    string   `json:"value"`
	}{
		Currency: a.Currency,
		Value:    a.Value(),
	})
}

// UnmarshalJSON 从十进制字符串解析金额
func (a *Amount) UnmarshalJSON(data []byte) error {
	aux := &struct {
		Currency Currency `json:"currency"`
		Value    string   `json:"value"`
	}{}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	parsed, err := ParseAmount(aux.Value, aux.Currency)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// String 返回支付状态字符串
func (s PaymentStatus) String() string {
	return string(s)
}

// IsValid 验证支付状态
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsActive 只有已完成的支付才视为有效订阅
func (s PaymentStatus) IsActive() bool {
	return s == PaymentStatusCompleted
}
