package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// ChainConfig describes one target chain.
type ChainConfig struct {
	ChainID string

	// RPCURL is an http(s) endpoint, or srv://<record> for DNS SRV
	// discovery of the endpoint.
	RPCURL string

	// RequiredDepth overrides the tracker's default confirmation depth for
	// this chain when non-zero.
	RequiredDepth uint64
}

// ParseChainFlag parses a chainID=...,rpc=...[,depth=...] flag value.
func ParseChainFlag(value string) (ChainConfig, error) {
	var cfg ChainConfig
	for _, part := range strings.Split(value, ",") {
		key, val, found := strings.Cut(part, "=")
		if !found {
			return ChainConfig{}, fmt.Errorf("invalid ledger flag segment %q", part)
		}

		switch key {
		case "chainID", "chain":
			cfg.ChainID = val
		case "rpc":
			cfg.RPCURL = val
		case "depth":
			depth, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return ChainConfig{}, fmt.Errorf("invalid depth %q: %w", val, err)
			}
			cfg.RequiredDepth = depth
		default:
			return ChainConfig{}, fmt.Errorf("unknown ledger flag key %q", key)
		}
	}

	if cfg.ChainID == "" {
		return ChainConfig{}, fmt.Errorf("ledger flag %q names no chainID", value)
	}
	if cfg.RPCURL == "" {
		return ChainConfig{}, fmt.Errorf("ledger flag %q names no rpc endpoint", value)
	}
	return cfg, nil
}

// Factory dials and caches ledger clients for the configured chains. It
// implements the LedgerDialer interface; dialed clients are shared, so the
// factory owns their lifecycle and Close must only be called here.
type Factory struct {
	configs  map[string]ChainConfig
	resolver *Resolver
	log      *slog.Logger

	mu      sync.Mutex
	clients map[string]interfaces.Ledger
}

// NewFactory creates a ledger factory for the given chain set.
func NewFactory(configs []ChainConfig, log *slog.Logger) *Factory {
	byID := make(map[string]ChainConfig, len(configs))
	for _, cfg := range configs {
		byID[cfg.ChainID] = cfg
	}

	return &Factory{
		configs: byID,
		log:     log,
		clients: make(map[string]interfaces.Ledger),
	}
}

// WithResolver configures DNS SRV endpoint discovery for srv:// RPC URLs.
func (f *Factory) WithResolver(r *Resolver) *Factory {
	f.resolver = r
	return f
}

// Chains returns the configured chain IDs, sorted.
func (f *Factory) Chains() []string {
	ids := make([]string, 0, len(f.configs))
	for id := range f.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Depths returns the per-chain confirmation depth overrides.
func (f *Factory) Depths() map[string]uint64 {
	depths := make(map[string]uint64)
	for id, cfg := range f.configs {
		if cfg.RequiredDepth > 0 {
			depths[id] = cfg.RequiredDepth
		}
	}
	return depths
}

// Dial returns the ledger client for a chain, connecting on first use.
func (f *Factory) Dial(ctx context.Context, chainID string) (interfaces.Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[chainID]; ok {
		return client, nil
	}

	cfg, ok := f.configs[chainID]
	if !ok {
		return nil, fmt.Errorf("no ledger configured for chain %q", chainID)
	}

	endpoints := []string{cfg.RPCURL}
	if strings.HasPrefix(cfg.RPCURL, "srv://") {
		if f.resolver == nil {
			return nil, fmt.Errorf("chain %q uses SRV discovery but no resolver is configured", chainID)
		}
		resolved, err := f.resolver.Resolve(strings.TrimPrefix(cfg.RPCURL, "srv://"))
		if err != nil {
			return nil, fmt.Errorf("discovering RPC endpoints for chain %q: %w", chainID, err)
		}
		endpoints = resolved
	}

	var lastErr error
	for _, endpoint := range endpoints {
		client, err := DialClient(ctx, chainID, endpoint, f.log)
		if err != nil {
			lastErr = err
			f.log.Warn("ledger endpoint unavailable", "chain", chainID, "endpoint", endpoint, "err", err)
			continue
		}
		f.clients[chainID] = client
		return client, nil
	}

	return nil, fmt.Errorf("no usable RPC endpoint for chain %q: %w", chainID, lastErr)
}

// Close releases every dialed client.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, client := range f.clients {
		client.Close()
		delete(f.clients, id)
	}
}
