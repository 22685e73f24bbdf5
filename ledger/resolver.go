package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// Resolver discovers ledger RPC endpoints through DNS SRV records, so a
// chain configuration can name a service record instead of pinning one
// endpoint.
type Resolver struct {
	// DNSAddr is the resolver to query, host:port.
	DNSAddr string

	client *dns.Client
}

// NewResolver creates a resolver querying the given DNS server, defaulting
// to the local systemd-resolved stub.
func NewResolver(dnsAddr string) *Resolver {
	if dnsAddr == "" {
		dnsAddr = "127.0.0.53:53"
	}
	return &Resolver{DNSAddr: dnsAddr, client: new(dns.Client)}
}

// Resolve looks up SRV records for a service name and returns RPC URLs in
// preference order.
func (r *Resolver) Resolve(name string) ([]string, error) {
	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.Question = []dns.Question{{Name: dns.Fqdn(name), Qtype: dns.TypeSRV, Qclass: dns.ClassINET}}

	in, _, err := r.client.Exchange(m, r.DNSAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", name, err)
	}

	srvs := make([]*dns.SRV, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			srvs = append(srvs, srv)
		}
	}
	if len(srvs) == 0 {
		return nil, fmt.Errorf("no SRV records for %s", name)
	}

	return endpointsFromSRV(srvs), nil
}

// endpointsFromSRV orders records by priority (lowest first), then weight
// (highest first), and renders each target as an HTTP RPC URL.
func endpointsFromSRV(srvs []*dns.SRV) []string {
	sorted := append([]*dns.SRV{}, srvs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Weight > sorted[j].Weight
	})

	endpoints := make([]string, 0, len(sorted))
	for _, srv := range sorted {
		host := strings.TrimSuffix(srv.Target, ".")
		endpoints = append(endpoints, fmt.Sprintf("http://%s:%d", host, srv.Port))
	}
	return endpoints
}
