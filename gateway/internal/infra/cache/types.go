package cache

import "sync"

type Cache struct {
	Storage sync.Map
}

// cache
var (
	QrCodesCache  = InitStorage()
	GasPriceCache = InitStorage()
	// job ids seen by the local queue
	JobsCache = InitStorage()
)
