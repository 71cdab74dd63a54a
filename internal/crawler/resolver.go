package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// DefaultFallbackDNS is the public resolver consulted when local resolution fails.
const DefaultFallbackDNS = "8.8.8.8:53"

type hostLookuper interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// FallbackResolver resolves hosts with the system resolver and retries
// failures against a fixed public DNS server.
type FallbackResolver struct {
	primary  hostLookuper
	fallback hostLookuper
	logger   *zap.Logger
}

// NewFallbackResolver builds a resolver whose fallback queries fallbackAddr (host:port).
func NewFallbackResolver(fallbackAddr string, logger *zap.Logger) *FallbackResolver {
	if fallbackAddr == "" {
		fallbackAddr = DefaultFallbackDNS
	}
	fallback := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: 5 * time.Second}
			return d.DialContext(ctx, network, fallbackAddr)
		},
	}
	return newFallbackResolver(net.DefaultResolver, fallback, logger)
}

func newFallbackResolver(primary, fallback hostLookuper, logger *zap.Logger) *FallbackResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackResolver{primary: primary, fallback: fallback, logger: logger}
}

// Resolve implements Resolver. IP literals resolve trivially.
func (r *FallbackResolver) Resolve(ctx context.Context, host string) error {
	if host == "" {
		return errors.New("empty host")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	addrs, err := r.primary.LookupHost(ctx, host)
	if err == nil && len(addrs) > 0 {
		return nil
	}
	if err == nil {
		err = errors.New("no addresses")
	}
	r.logger.Debug("primary DNS lookup failed; trying fallback", zap.String("host", host), zap.Error(err))
	if r.fallback == nil {
		return fmt.Errorf("lookup %s: %w", host, err)
	}
	addrs, ferr := r.fallback.LookupHost(ctx, host)
	if ferr != nil {
		return fmt.Errorf("lookup %s via fallback: %w", host, ferr)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("lookup %s: no addresses", host)
	}
	return nil
}
