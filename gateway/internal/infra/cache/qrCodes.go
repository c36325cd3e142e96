package cache

import (
	"time"

	"chainpay/pkg/utils"
)

const qrCodeExpiration = 24 * time.Hour

func SaveQrCode(content string, qrCode string) {
	QrCodesCache.Set(content, qrCode, qrCodeExpiration)
}

// returns qr code from cache
//
// if not found, returns an empty string ("")
func FindQrCode(content string) string {
	qrCode, err := utils.SafeCast[string](QrCodesCache.Load(content))
	if err != nil {
		return ""
	}
	return qrCode
}
