// round robin over a list that can be replaced at runtime.
// used for webhook proxies and rpc urls
package rr

import (
	"sync/atomic"
)

type RoundRobin interface {
	// false - the list is empty
	Next() (string, bool)
	Len() int
}

type rr struct {
	data  *atomic.Pointer[[]string]
	index atomic.Uint32
}

func New(data *atomic.Pointer[[]string]) *rr {
	return &rr{data: data}
}

func (r *rr) list() []string {
	ptr := r.data.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

func (r *rr) Next() (string, bool) {
	items := r.list()
	if len(items) == 0 {
		return "", false
	}

	n := r.index.Add(1)
	return items[(n-1)%uint32(len(items))], true
}

func (r *rr) Len() int {
	return len(r.list())
}
