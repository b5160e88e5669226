// Package lock 提供按 key 串行化的互斥锁，单进程用内存实现，多实例部署用 redis 实现。
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker 获取 key 对应的锁，返回的 unlock 必须调用
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
