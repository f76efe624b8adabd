package jobs

import (
	"github.com/sirupsen/logrus"
)

type ExpiringCache interface {
	CleanupExpired() int
}

type CacheCleanupJob struct {
	Cache ExpiringCache
}

func NewCacheCleanupJob(cache ExpiringCache) *CacheCleanupJob {
	return &CacheCleanupJob{Cache: cache}
}

func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

func (j *CacheCleanupJob) Run() {
	removed := j.Cache.CleanupExpired()
	if removed > 0 {
		logrus.Infof("Cache cleanup removed %d expired entries", removed)
	}
}
