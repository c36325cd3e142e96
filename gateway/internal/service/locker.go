package service

import (
	"chainpay/gateway/internal/infra/cache"
)

// in-process locks, one key per running job kind and chain
type LockerService struct {
	cache *cache.Cache
}

func NewLockerService(cache *cache.Cache) *LockerService {
	return &LockerService{cache: cache}
}

func (s *LockerService) TryLock(key string) bool {
	return s.cache.SetIfAbsent(key, true, 0)
}

func (s *LockerService) Unlock(key string) {
	s.cache.Del(key)
}

func (s *LockerService) IsLocked(key string) bool {
	return s.cache.Load(key) != nil // locked if not nil
}
