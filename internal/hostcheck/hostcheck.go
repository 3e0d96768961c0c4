// Package hostcheck resolves the hostnames referenced by rule conditions so
// the check command can flag rules that point at names with no A records.
package hostcheck

import (
	"context"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// Resolver abstracts hostname resolution to allow for different DNS
// resolution strategies. Implementations can provide system DNS resolution,
// custom DNS server queries, or mock responses for testing.
type Resolver interface {
	LookupIP(ctx context.Context, host string) ([]net.IP, error)
}

// DefaultResolver uses Go's net package for lookups.
type DefaultResolver struct{}

func (d *DefaultResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, addr := range addrs {
		ips = append(ips, addr.IP)
	}
	return ips, nil
}

// CustomResolver uses miekg/dns to query custom DNS servers.
type CustomResolver struct {
	Servers []string // List of DNS server addresses
	client  *dns.Client
}

// NewCustomResolver creates a new CustomResolver with a reusable client.
// Servers without an explicit port are queried on :53.
func NewCustomResolver(servers []string) *CustomResolver {
	normalized := make([]string, len(servers))
	for i, server := range servers {
		normalized[i] = NormalizeServer(server)
	}
	return &CustomResolver{
		Servers: normalized,
		client:  &dns.Client{},
	}
}

// NormalizeServer appends the default DNS port when the address has none.
func NormalizeServer(server string) string {
	if strings.Contains(server, ":") {
		return server
	}
	return server + ":53"
}

func (c *CustomResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	var results []net.IP
	for _, server := range c.Servers {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), dns.TypeA)
		resp, _, err := c.client.ExchangeContext(ctx, m, server)
		if err != nil {
			continue // Try next server
		}
		if resp == nil || resp.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, ans := range resp.Answer {
			if a, ok := ans.(*dns.A); ok {
				results = append(results, a.A)
			}
		}
		if len(results) > 0 {
			return results, nil
		}
	}
	// Fallback to system DNS
	return (&DefaultResolver{}).LookupIP(ctx, host)
}
