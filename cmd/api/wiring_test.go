package main

import (
	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/handler"
	"github.com/tagdesk/tagdesk/internal/metrics"
	"github.com/tagdesk/tagdesk/internal/middleware"
	"github.com/tagdesk/tagdesk/internal/repository"
	"github.com/tagdesk/tagdesk/internal/service"
)

// The concrete types wired in main must keep satisfying the interfaces their
// consumers declare. These fail to compile when a signature drifts.
var (
	_ service.Source              = (*repository.Repository)(nil)
	_ service.AllocationStore     = (*repository.Repository)(nil)
	_ service.AccessPasswordStore = (*repository.Repository)(nil)
	_ service.TransactionStore    = (*repository.Repository)(nil)
	_ service.PasswordVerifier    = (*service.AccessPasswordService)(nil)

	_ handler.UserReader               = (*service.UserService)(nil)
	_ handler.AllocationOperations     = (*service.AllocationService)(nil)
	_ handler.WalletOperations         = (*service.WalletService)(nil)
	_ handler.AccessPasswordOperations = (*service.AccessPasswordService)(nil)
	_ handler.CacheAdmin               = (*service.CacheService)(nil)
	_ handler.ActivityReader           = (*repository.ActivityRepository)(nil)
	_ handler.APIKeyStore              = (*repository.Repository)(nil)
	_ handler.AuthRevoker              = (*cache.Cache)(nil)
	_ handler.HealthChecker            = (*repository.Repository)(nil)
	_ handler.HealthChecker            = (*cache.Cache)(nil)

	_ middleware.KeyStore  = (*repository.Repository)(nil)
	_ middleware.AuthCache = (*cache.Cache)(nil)
	_ middleware.Limiter   = (*cache.Cache)(nil)

	_ activity.Repository = (*repository.ActivityRepository)(nil)
	_ activity.Recorder   = (*activity.Publisher)(nil)
	_ activity.Recorder   = (*activity.Direct)(nil)

	_ cache.Mirror     = (*cache.RedisMirror)(nil)
	_ cache.Mirror     = (*cache.MemoryMirror)(nil)
	_ metrics.Recorder = (*metrics.PrometheusRecorder)(nil)
)
