// Package healthcheck exposes dependency health over the standard gRPC health protocol.
package healthcheck

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"smishguard/pkg/logger"
)

// ServiceName is the name reported alongside the overall ("") status
const ServiceName = "smishguard.v1.ScanService"

// Pinger is a dependency whose reachability gates the serving status
type Pinger interface {
	Ping(ctx context.Context) error
}

// Register adds the health service to grpcServer and refreshes it every interval until ctx is done
func Register(ctx context.Context, grpcServer *grpc.Server, deps map[string]Pinger, interval time.Duration, log *logger.Logger) *health.Server {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	log = log.WithComponent("grpc-health")

	healthServer := health.NewServer()
	setStatus(healthServer, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			Refresh(ctx, healthServer, deps, log)

			select {
			case <-ctx.Done():
				healthServer.Shutdown()
				return
			case <-ticker.C:
			}
		}
	}()

	return healthServer
}

// Refresh pings every dependency once and updates the serving status
func Refresh(ctx context.Context, healthServer *health.Server, deps map[string]Pinger, log *logger.Logger) {
	serving := true
	for name, dep := range deps {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("dependency unhealthy")
			serving = false
		}
	}

	if serving {
		setStatus(healthServer, grpc_health_v1.HealthCheckResponse_SERVING)
	} else {
		setStatus(healthServer, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
}

func setStatus(s *health.Server, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.SetServingStatus("", status)
	s.SetServingStatus(ServiceName, status)
}
