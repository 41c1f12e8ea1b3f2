package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/paventhan183/dr-appointment/libs/config"
	"github.com/paventhan183/dr-appointment/libs/grpcx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthprobe asks the gRPC health service for a status and exits 0 only on
// SERVING, so it can back a container health check.
func main() {
	var (
		addr    = flag.String("addr", config.String("HEALTH_ADDR", "localhost:"+config.String("GRPC_PORT", "9090")), "grpc health address")
		service = flag.String("service", config.String("HEALTH_SERVICE", ""), "service name to check (empty for overall)")
		timeout = flag.Duration("timeout", 3*time.Second, "rpc timeout")
	)
	flag.Parse()

	conn, err := grpcx.NewClient(*addr, grpcx.DialOptions{})
	if err != nil {
		fatal(err.Error())
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("status=%s\n", resp.GetStatus())
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
