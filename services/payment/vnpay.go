package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tourbook/models"
)

const (
	vnpVersion        = "2.1.0"
	vnpCommand        = "pay"
	vnpDateLayout     = "20060102150405"
	vnpSecureHash     = "vnp_SecureHash"
	vnpSecureHashType = "vnp_SecureHashType"
	vnpSuccessCode    = "00"
	defaultOrderType  = "other"
)

var vnpLocation = loadVNLocation()

func loadVNLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// VNPayConfig holds merchant credentials issued by VNPay.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Currency   string
	Expiry     time.Duration
}

// VNPay signs redirects to and verifies callbacks from the VNPay gateway.
type VNPay struct {
	cfg VNPayConfig
}

func NewVNPay(cfg VNPayConfig) *VNPay {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 15 * time.Minute
	}
	if cfg.Currency == "" {
		cfg.Currency = "VND"
	}
	return &VNPay{cfg: cfg}
}

func (g *VNPay) Method() models.PaymentMethod { return models.MethodVNPay }

func (g *VNPay) RedirectTTL() time.Duration { return g.cfg.Expiry }

func (g *VNPay) BuildRedirect(ctx context.Context, p models.Payment, req RedirectRequest) (string, error) {
	if p.Reference == "" {
		return "", fmt.Errorf("vnpay: payment %s has no reference", p.ID)
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(vnpLocation)
	if !req.Deadline.IsZero() && !req.Deadline.After(now) {
		return "", models.ErrPaymentWindowClosed
	}
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}
	locale := req.Locale
	if locale == "" {
		locale = "vn"
	}
	info := req.OrderInfo
	if info == "" {
		info = "Thanh toan don hang " + p.Reference
	}

	params := map[string]string{
		"vnp_Version":    vnpVersion,
		"vnp_Command":    vnpCommand,
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(p.Amount*100, 10),
		"vnp_CurrCode":   g.cfg.Currency,
		"vnp_TxnRef":     p.Reference,
		"vnp_OrderInfo":  info,
		"vnp_OrderType":  defaultOrderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": now.Format(vnpDateLayout),
		"vnp_ExpireDate": req.expiry(now, g.cfg.Expiry).In(vnpLocation).Format(vnpDateLayout),
	}
	query := Canonicalize(params)
	return g.cfg.PayURL + "?" + query + "&" + vnpSecureHash + "=" + Sign(g.cfg.HashSecret, query), nil
}

// VerifyCallback checks the signature of an IPN or return-URL query. Nothing
// else in params is trusted until it passes.
func (g *VNPay) VerifyCallback(values url.Values) (*VerifiedCallback, error) {
	params := make(map[string]string, len(values))
	for k := range values {
		if strings.HasPrefix(k, "vnp_") {
			params[k] = values.Get(k)
		}
	}
	got := params[vnpSecureHash]
	delete(params, vnpSecureHash)
	delete(params, vnpSecureHashType)
	if got == "" || !verifySignature(g.cfg.HashSecret, Canonicalize(params), got) {
		return nil, models.ErrSignatureInvalid
	}

	ref := params["vnp_TxnRef"]
	if ref == "" {
		return nil, models.ValidationError("vnpay callback has no vnp_TxnRef")
	}
	cb := &VerifiedCallback{
		gateway:      models.MethodVNPay,
		reference:    ref,
		responseCode: params["vnp_ResponseCode"],
		gatewayTxnID: params["vnp_TransactionNo"],
		raw:          params,
	}
	cb.success = cb.responseCode == vnpSuccessCode
	if status, ok := params["vnp_TransactionStatus"]; ok && status != vnpSuccessCode {
		cb.success = false
	}
	if raw, ok := params["vnp_Amount"]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, models.ValidationError("vnpay callback has a malformed vnp_Amount")
		}
		cb.amount, cb.hasAmount = n/100, true
	}
	return cb, nil
}

// Canonicalize renders params as key=value pairs sorted by key, both sides
// query-escaped and joined with '&'. Empty values are left out.
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// Sign returns the hex HMAC-SHA512 of data under secret.
func Sign(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret, data, got string) bool {
	gotBytes, err := hex.DecodeString(strings.ToLower(got))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hmac.Equal(mac.Sum(nil), gotBytes)
}
