package authority

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
)

const resolverRefreshTTL = 5 * time.Minute

var (
	cachedResolver     *dnscache.Resolver
	cachedResolverOnce sync.Once
)

// getResolver returns the shared caching DNS resolver, creating it and its
// refresh loop on first use. Caching keeps periodic entitlement checks from
// hammering DNS on hosts with slow or rate-limited resolvers.
func getResolver() *dnscache.Resolver {
	cachedResolverOnce.Do(func() {
		log.Debug().Dur("ttl", resolverRefreshTTL).Msg("Initializing DNS resolver cache for authority client")
		cachedResolver = &dnscache.Resolver{}

		go func() {
			ticker := time.NewTicker(resolverRefreshTTL)
			defer ticker.Stop()
			for range ticker.C {
				cachedResolver.Refresh(true)
			}
		}()
	})
	return cachedResolver
}

// dialContextWithCache dials through the caching resolver.
func dialContextWithCache(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	ips, err := getResolver().LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no IP addresses found", Name: host}
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
}
