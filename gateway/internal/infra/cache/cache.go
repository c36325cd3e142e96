package cache

import "time"

func InitStorage() *Cache {
	return &Cache{}
}

// stored value is dropped after expiration unless it was replaced meanwhile
func (c *Cache) Set(k any, v any, expiration time.Duration) {
	c.Storage.Store(k, v)
	c.expire(k, v, expiration)
}

func (c *Cache) SetNoExp(k any, v any) {
	c.Storage.Store(k, v)
}

// false - k is already taken. expiration 0 - kept until Del
func (c *Cache) SetIfAbsent(k any, v any, expiration time.Duration) bool {
	if _, loaded := c.Storage.LoadOrStore(k, v); loaded {
		return false
	}
	c.expire(k, v, expiration)
	return true
}

func (c *Cache) Del(k any) {
	c.Storage.Delete(k)
}

func (c *Cache) Load(k any) any {
	v, _ := c.Storage.Load(k)
	return v
}

func (c *Cache) expire(k any, v any, expiration time.Duration) {
	if expiration <= 0 {
		return
	}
	time.AfterFunc(expiration, func() {
		c.Storage.CompareAndDelete(k, v)
	})
}

