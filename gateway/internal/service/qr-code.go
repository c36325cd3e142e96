package service

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/cache"
	"chainpay/gateway/internal/infra/evm"

	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

type QrCodesService struct {
	config *config.Config
}

func NewQrCodesService(config *config.Config) *QrCodesService {
	return &QrCodesService{config: config}
}

// EIP-681 uri of the payment. token may be nil for native payments
func (s *QrCodesService) PaymentURI(p *domain.Payments, token *domain.Tokens) (string, error) {
	chain, ok := s.config.Chain(p.Chain)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownChain, p.Chain)
	}

	if token == nil || token.IsNative() {
		return evm.PaymentURI(p.Address, p.Amount, chain.ChainID, nil), nil
	}
	contract := token.Contract()
	return evm.PaymentURI(p.Address, p.Amount, chain.ChainID, &contract), nil
}

func (s *QrCodesService) ForPayment(p *domain.Payments, token *domain.Tokens) (string, error) {
	uri, err := s.PaymentURI(p, token)
	if err != nil {
		return "", err
	}
	return s.FindOrNew(uri)
}

// generates qr code and saves it to cache
func (s *QrCodesService) New(content string) (string, error) {
	qr, err := generateQrCode(content)
	if err != nil {
		return "", err
	}

	cache.SaveQrCode(content, qr)

	return qr, nil
}

// returns qr code from cache or generates new one
func (s *QrCodesService) FindOrNew(content string) (string, error) {
	if qr := cache.FindQrCode(content); qr != "" {
		return qr, nil
	}
	return s.New(content)
}

type smallerCircle struct {
	smallerPercent float64
}

// https://github.com/yeqown/go-qrcode/blob/main/example/with-custom-shape/main.go
func (sc *smallerCircle) DrawFinder(ctx *standard.DrawContext) {
	backup := sc.smallerPercent
	sc.smallerPercent = 1.0
	sc.Draw(ctx)
	sc.smallerPercent = backup
}

func newShape(radiusPercent float64) standard.IShape {
	return &smallerCircle{smallerPercent: radiusPercent}
}

func (sc *smallerCircle) Draw(ctx *standard.DrawContext) {
	w, h := ctx.Edge()
	x, y := ctx.UpperLeft()
	color := ctx.Color()

	// choose a proper radius values
	radius := w / 2
	r2 := h / 2
	if r2 <= radius {
		radius = r2
	}

	radius = int(float64(radius) * sc.smallerPercent)

	cx, cy := x+float64(w)/2.0, y+float64(h)/2.0 // get center point
	ctx.DrawCircle(cx, cy, float64(radius))
	ctx.SetColor(color)
	ctx.Fill()
}

type bufferAdaptor struct {
	*bytes.Buffer
}

func (b bufferAdaptor) Close() error {
	return nil
}

func (b bufferAdaptor) Write(p []byte) (int, error) {
	return b.Buffer.Write(p)
}

// returns qr code in base64
func generateQrCode(content string) (string, error) {
	shape := newShape(0.7)
	qrc, err := qrcode.New(content)
	if err != nil {
		return "", fmt.Errorf("qrcode: %w", err)
	}

	b := bufferAdaptor{Buffer: bytes.NewBuffer(nil)}
	w2 := standard.NewWithWriter(b, standard.WithCustomShape(shape), standard.WithBuiltinImageEncoder(standard.PNG_FORMAT))

	if err = qrc.Save(w2); err != nil {
		return "", err
	}

	var qrBytes = make([]byte, b.Len())
	_, err = b.Read(qrBytes)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(qrBytes), nil
}
