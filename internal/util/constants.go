package util

const (
	JobsBackendMemory = "memory"
	JobsBackendAsynq  = "asynq"

	LocksBackendMemory = "memory"
	LocksBackendRedis  = "redis"
)

// 分页默认值
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)
