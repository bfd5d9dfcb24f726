package database

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v9"
	"github.com/loyaltyapp/push-server/utils"
	"k8s.io/klog/v2"
)

// Prefix for all keys
const keyPrefix = "pushserver"

// Singleton shared by the dispatch guard and the reconcile lock
type redisManager struct {
	Client *redis.Client
	Mock   bool
}

var singleton *redisManager
var once sync.Once

func GetRedisDB() *redisManager {
	once.Do(func() {
		if utils.GetEnv("MOCK_REDIS", "false") == "true" {
			klog.Infof("Using mock redis client because MOCK_REDIS=true is set in environment")
			mr, _ := miniredis.Run()
			client := redis.NewClient(&redis.Options{
				Addr: mr.Addr(),
			})
			singleton = &redisManager{
				Client: client,
				Mock:   true,
			}
		} else {
			redis_port, err := strconv.Atoi(utils.GetEnv("REDIS_PORT", "6379"))
			if err != nil {
				panic("Invalid REDIS_PORT specified")
			}
			redis_db, err := strconv.Atoi(utils.GetEnv("REDIS_DB", "0"))
			if err != nil {
				panic("Invalid REDIS_DB specified")
			}
			client := redis.NewClient(&redis.Options{
				Addr: fmt.Sprintf("%s:%d", utils.GetEnv("REDIS_HOST", "localhost"), redis_port),
				DB:   redis_db,
			})
			singleton = &redisManager{
				Client: client,
				Mock:   false,
			}
		}
	})
	return singleton
}

func dispatchKey(postID string) string {
	return fmt.Sprintf("%s:dispatch:%s", keyPrefix, postID)
}

func reconcileKey() string {
	return fmt.Sprintf("%s:reconcile", keyPrefix)
}

// ClaimDispatch marks the post as dispatched. It returns false when another
// trigger delivery already claimed it within ttl.
func (r *redisManager) ClaimDispatch(ctx context.Context, postID string, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, dispatchKey(postID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// ReleaseDispatch lets a retried trigger dispatch the post again
func (r *redisManager) ReleaseDispatch(ctx context.Context, postID string) error {
	return r.Client.Del(ctx, dispatchKey(postID)).Err()
}

// AcquireReconcileLock keeps replicas from reconciling the same tickets at once.
// The lock expires on its own if the holder dies.
func (r *redisManager) AcquireReconcileLock(ctx context.Context, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, reconcileKey(), "1", ttl).Result()
}

func (r *redisManager) ReleaseReconcileLock(ctx context.Context) error {
	return r.Client.Del(ctx, reconcileKey()).Err()
}

// ping - Redis PING
func (r *redisManager) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
