package ingestion

import (
	"context"

	"defi-analytics/internal/storage"
)

// Resolver maps natural keys to surrogate ids with an in-memory cache scoped
// to one ingestion run. The cache is seeded lazily: a miss queries the store,
// a store hit is cached, a store miss returns storage.ErrNotFound and the
// caller decides whether to create or skip. One instance per run, discarded
// afterwards.
type Resolver struct {
	protocols storage.ProtocolStore
	contracts storage.ContractStore
	users     storage.UserStore

	protocolIDs     map[string]int64 // name -> id
	contractIDs     map[string]int64 // address|chain -> id
	contractAddrIDs map[string]int64 // address -> id of oldest contract
	userIDs         map[string]int64 // address -> id
}

// NewResolver creates a resolver over the given stores with empty caches.
func NewResolver(protocols storage.ProtocolStore, contracts storage.ContractStore, users storage.UserStore) *Resolver {
	return &Resolver{
		protocols:       protocols,
		contracts:       contracts,
		users:           users,
		protocolIDs:     make(map[string]int64),
		contractIDs:     make(map[string]int64),
		contractAddrIDs: make(map[string]int64),
		userIDs:         make(map[string]int64),
	}
}

// ResolveProtocol returns the surrogate id for a protocol name.
func (r *Resolver) ResolveProtocol(ctx context.Context, name string) (int64, error) {
	if id, ok := r.protocolIDs[name]; ok {
		return id, nil
	}

	p, err := r.protocols.GetByName(ctx, name)
	if err != nil {
		return 0, err
	}

	r.protocolIDs[name] = p.ID
	return p.ID, nil
}

// ResolveContract returns the surrogate id for an (address, chain) pair.
func (r *Resolver) ResolveContract(ctx context.Context, address, chain string) (int64, error) {
	key := address + "|" + chain
	if id, ok := r.contractIDs[key]; ok {
		return id, nil
	}

	c, err := r.contracts.GetByAddressChain(ctx, address, chain)
	if err != nil {
		return 0, err
	}

	r.contractIDs[key] = c.ID
	return c.ID, nil
}

// ResolveContractByAddress returns the id of the oldest contract with the
// given address across chains. Transaction batch records carry only the
// contract address, so this is the resolution path for their foreign key.
func (r *Resolver) ResolveContractByAddress(ctx context.Context, address string) (int64, error) {
	if id, ok := r.contractAddrIDs[address]; ok {
		return id, nil
	}

	c, err := r.contracts.GetByAddress(ctx, address)
	if err != nil {
		return 0, err
	}

	r.contractAddrIDs[address] = c.ID
	return c.ID, nil
}

// ResolveUser returns the surrogate id for a user wallet address.
func (r *Resolver) ResolveUser(ctx context.Context, address string) (int64, error) {
	if id, ok := r.userIDs[address]; ok {
		return id, nil
	}

	u, err := r.users.GetByAddress(ctx, address)
	if err != nil {
		return 0, err
	}

	r.userIDs[address] = u.ID
	return u.ID, nil
}

// CacheProtocol records a protocol id created mid-run, so later records in
// the same batch reuse it without a store round trip.
func (r *Resolver) CacheProtocol(name string, id int64) {
	r.protocolIDs[name] = id
}

// CacheContract records a contract id created mid-run.
func (r *Resolver) CacheContract(address, chain string, id int64) {
	r.contractIDs[address+"|"+chain] = id
	if _, ok := r.contractAddrIDs[address]; !ok {
		r.contractAddrIDs[address] = id
	}
}

// CacheUser records a user id created mid-run.
func (r *Resolver) CacheUser(address string, id int64) {
	r.userIDs[address] = id
}
