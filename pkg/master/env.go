package master

// Environment variable keys a re-exec'd child reads to pick its role
// and reconstruct the worker/fork options the source process would
// have inherited across a plain fork(). Exported so cmd/colony's main
// package can read the same keys the master writes.
const (
	EnvRole        = "COLONY_ROLE"
	EnvWorkerSlot  = "COLONY_WORKER_SLOT"
	EnvForkPath    = "COLONY_FORK_PATH"
	EnvBrokerRef   = "COLONY_BROKER_REF"
	EnvModules     = "COLONY_MODULES"
	EnvQueues      = "COLONY_QUEUES"
	EnvThreads     = "COLONY_THREADS"
	EnvTaskCap     = "COLONY_TASK_CAP"
	EnvMemCap      = "COLONY_MEM_CAP"
	EnvCanteenPath = "COLONY_CANTEEN_PATH"

	RoleWorker = "worker"
	RoleFork   = "fork"
)
