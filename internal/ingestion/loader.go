package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/observability"
	"defi-analytics/internal/storage"
)

// Entity and skip-reason labels for metrics.
const (
	entityProtocol    = "protocol"
	entityContract    = "contract"
	entityUser        = "user"
	entityTransaction = "transaction"
	entityMarketData  = "market_data"

	reasonValidation = "validation"
	reasonUnresolved = "unresolved"
	reasonDuplicate  = "duplicate"
)

const defaultChunkSize = 1000

// Result reports one batch pass outcome. Skipped covers validation failures,
// unresolved parent references and duplicate natural keys alike; none of
// them fail the batch.
type Result struct {
	Created int
	Skipped int
}

// Loader performs idempotent batch ingestion into the relational store.
// Each pass batches inserts and commits every ChunkSize records, so a crash
// mid-batch leaves only fully-committed prefixes durable. Duplicate natural
// keys are absorbed, never surfaced as failures; two overlapping runs over
// overlapping inputs converge to the same final state.
type Loader struct {
	protocols    storage.ProtocolStore
	contracts    storage.ContractStore
	users        storage.UserStore
	transactions storage.TransactionStore
	marketData   storage.MarketDataStore
	chunkSize    int
	logger       *log.Logger
}

// LoaderOptions contains configuration for creating a Loader.
type LoaderOptions struct {
	Protocols    storage.ProtocolStore
	Contracts    storage.ContractStore
	Users        storage.UserStore
	Transactions storage.TransactionStore
	MarketData   storage.MarketDataStore
	ChunkSize    int // Default: 1000 records per commit
	Logger       *log.Logger
}

// NewLoader creates a new batch loader.
func NewLoader(opts LoaderOptions) *Loader {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Loader{
		protocols:    opts.Protocols,
		contracts:    opts.Contracts,
		users:        opts.Users,
		transactions: opts.Transactions,
		marketData:   opts.MarketData,
		chunkSize:    chunkSize,
		logger:       logger,
	}
}

// newRunResolver creates the resolver for one ingestion run.
func (l *Loader) newRunResolver() *Resolver {
	return NewResolver(l.protocols, l.contracts, l.users)
}

// LoadContracts ingests a contracts batch. Protocols embedded in the records
// are created first (create-if-absent by name); a contract whose protocol
// cannot be resolved or created is skipped and counted.
func (l *Loader) LoadContracts(ctx context.Context, records []ContractRecord) (Result, error) {
	return l.loadContracts(ctx, l.newRunResolver(), records)
}

func (l *Loader) loadContracts(ctx context.Context, resolver *Resolver, records []ContractRecord) (Result, error) {
	var res Result
	seen := make(map[string]struct{})
	var pending []*domain.Contract

	flush := func() error {
		created, skipped, err := flushChunk(ctx, l.contracts.InsertBulk, pending)
		if err != nil {
			return err
		}
		res.Created += created
		res.Skipped += skipped
		observability.RecordCreated(entityContract, created)
		if skipped > 0 {
			observability.RecordSkipped(entityContract, reasonDuplicate, skipped)
		}
		pending = pending[:0]
		return nil
	}

	for _, rec := range records {
		if rec.ContractAddress == "" || rec.Blockchain == "" || rec.ProtocolName == "" {
			l.logger.Printf("Skipping contract record with missing required fields: address=%q chain=%q protocol=%q",
				rec.ContractAddress, rec.Blockchain, rec.ProtocolName)
			res.Skipped++
			observability.RecordSkipped(entityContract, reasonValidation, 1)
			continue
		}

		key := rec.ContractAddress + "|" + rec.Blockchain
		if _, dup := seen[key]; dup {
			res.Skipped++
			observability.RecordSkipped(entityContract, reasonDuplicate, 1)
			continue
		}
		seen[key] = struct{}{}

		protoID, err := resolver.ResolveProtocol(ctx, rec.ProtocolName)
		if errors.Is(err, storage.ErrNotFound) {
			protoID, err = l.createProtocol(ctx, resolver, rec)
			if errors.Is(err, storage.ErrNotFound) {
				l.logger.Printf("Skipping contract %s: protocol %q unresolved", rec.ContractAddress, rec.ProtocolName)
				res.Skipped++
				observability.RecordSkipped(entityContract, reasonUnresolved, 1)
				continue
			}
		}
		if err != nil {
			return res, fmt.Errorf("resolve protocol %q: %w", rec.ProtocolName, err)
		}

		// Idempotence: existing (address, chain) pairs are a no-op
		if _, err := resolver.ResolveContract(ctx, rec.ContractAddress, rec.Blockchain); err == nil {
			res.Skipped++
			observability.RecordSkipped(entityContract, reasonDuplicate, 1)
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return res, fmt.Errorf("resolve contract %s/%s: %w", rec.ContractAddress, rec.Blockchain, err)
		}

		active := true
		if rec.Active != nil {
			active = *rec.Active
		}

		pending = append(pending, &domain.Contract{
			Address:    rec.ContractAddress,
			Chain:      rec.Blockchain,
			ProtocolID: protoID,
			Active:     active,
		})

		if len(pending) >= l.chunkSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

// createProtocol inserts the protocol embedded in a contract record. The
// insert happens immediately (not chunked) because the surrogate id is
// needed to key the contract. A duplicate-key failure means a concurrent
// run created it first; the re-resolve picks up that row.
func (l *Loader) createProtocol(ctx context.Context, resolver *Resolver, rec ContractRecord) (int64, error) {
	p := &domain.Protocol{
		Name:        rec.ProtocolName,
		Symbol:      rec.ProtocolSymbol,
		Category:    rec.ProtocolCategory,
		Description: rec.ProtocolDescription,
		WebsiteURL:  rec.ProtocolWebsiteURL,
	}

	err := l.protocols.Insert(ctx, p)
	if err == nil {
		resolver.CacheProtocol(p.Name, p.ID)
		observability.RecordCreated(entityProtocol, 1)
		return p.ID, nil
	}
	if errors.Is(err, storage.ErrDuplicateKey) {
		return resolver.ResolveProtocol(ctx, rec.ProtocolName)
	}
	return 0, err
}

// LoadUsers ingests a users batch (create-if-absent by unique address).
// Omitted numeric fields default to zero and the classification tag defaults
// to regular.
func (l *Loader) LoadUsers(ctx context.Context, records []UserRecord) (Result, error) {
	return l.loadUsers(ctx, l.newRunResolver(), records)
}

func (l *Loader) loadUsers(ctx context.Context, resolver *Resolver, records []UserRecord) (Result, error) {
	var res Result
	seen := make(map[string]struct{})
	var pending []*domain.User

	flush := func() error {
		created, skipped, err := flushChunk(ctx, l.users.InsertBulk, pending)
		if err != nil {
			return err
		}
		res.Created += created
		res.Skipped += skipped
		observability.RecordCreated(entityUser, created)
		if skipped > 0 {
			observability.RecordSkipped(entityUser, reasonDuplicate, skipped)
		}
		pending = pending[:0]
		return nil
	}

	for _, rec := range records {
		if rec.Address == "" {
			l.logger.Printf("Skipping user record with empty address")
			res.Skipped++
			observability.RecordSkipped(entityUser, reasonValidation, 1)
			continue
		}

		if _, dup := seen[rec.Address]; dup {
			res.Skipped++
			observability.RecordSkipped(entityUser, reasonDuplicate, 1)
			continue
		}
		seen[rec.Address] = struct{}{}

		if _, err := resolver.ResolveUser(ctx, rec.Address); err == nil {
			res.Skipped++
			observability.RecordSkipped(entityUser, reasonDuplicate, 1)
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return res, fmt.Errorf("resolve user %s: %w", rec.Address, err)
		}

		classification := rec.Classification
		if classification == "" {
			classification = domain.UserRegular
		}

		pending = append(pending, &domain.User{
			Address:          rec.Address,
			TransactionCount: rec.TransactionCount,
			TotalVolume:      decimal.NewFromFloat(rec.TotalVolume),
			FirstSeen:        msToTime(rec.FirstSeenMs),
			LastSeen:         msToTime(rec.LastSeenMs),
			Classification:   classification,
		})

		if len(pending) >= l.chunkSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

// LoadTransactions ingests a transactions batch (create-if-absent by unique
// hash). A record whose contract address cannot be resolved is dropped;
// sender/receiver user resolution is best-effort and the raw address strings
// are stored either way.
func (l *Loader) LoadTransactions(ctx context.Context, records []TransactionRecord) (Result, error) {
	return l.loadTransactions(ctx, l.newRunResolver(), records)
}

func (l *Loader) loadTransactions(ctx context.Context, resolver *Resolver, records []TransactionRecord) (Result, error) {
	var res Result
	seen := make(map[string]struct{})
	var pending []*domain.Transaction

	flush := func() error {
		created, skipped, err := flushChunk(ctx, l.transactions.InsertBulk, pending)
		if err != nil {
			return err
		}
		res.Created += created
		res.Skipped += skipped
		observability.RecordCreated(entityTransaction, created)
		if skipped > 0 {
			observability.RecordSkipped(entityTransaction, reasonDuplicate, skipped)
		}
		pending = pending[:0]
		return nil
	}

	for _, rec := range records {
		if rec.Hash == "" || rec.ContractAddress == "" || rec.FromAddress == "" || rec.TimestampMs == 0 {
			l.logger.Printf("Skipping transaction record with missing required fields: hash=%q contract=%q",
				rec.Hash, rec.ContractAddress)
			res.Skipped++
			observability.RecordSkipped(entityTransaction, reasonValidation, 1)
			continue
		}

		if _, dup := seen[rec.Hash]; dup {
			res.Skipped++
			observability.RecordSkipped(entityTransaction, reasonDuplicate, 1)
			continue
		}
		seen[rec.Hash] = struct{}{}

		if _, err := l.transactions.GetByHash(ctx, rec.Hash); err == nil {
			res.Skipped++
			observability.RecordSkipped(entityTransaction, reasonDuplicate, 1)
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return res, fmt.Errorf("check transaction %s: %w", rec.Hash, err)
		}

		contractID, err := resolver.ResolveContractByAddress(ctx, rec.ContractAddress)
		if errors.Is(err, storage.ErrNotFound) {
			l.logger.Printf("Dropping transaction %s: contract %s unresolved", rec.Hash, rec.ContractAddress)
			res.Skipped++
			observability.RecordSkipped(entityTransaction, reasonUnresolved, 1)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("resolve contract %s: %w", rec.ContractAddress, err)
		}

		fromUserID, err := l.resolveUserBestEffort(ctx, resolver, rec.FromAddress)
		if err != nil {
			return res, err
		}
		toUserID, err := l.resolveUserBestEffort(ctx, resolver, rec.ToAddress)
		if err != nil {
			return res, err
		}

		status := rec.Status
		if status == "" {
			status = domain.TxStatusSuccess
		}

		pending = append(pending, &domain.Transaction{
			Hash:        rec.Hash,
			ContractID:  contractID,
			FromUserID:  fromUserID,
			ToUserID:    toUserID,
			FromAddress: rec.FromAddress,
			ToAddress:   rec.ToAddress,
			Value:       decimal.NewFromFloat(rec.Value),
			GasUsed:     rec.GasUsed,
			GasPrice:    decimal.NewFromFloat(rec.GasPrice),
			Fee:         decimal.NewFromFloat(rec.Fee),
			Timestamp:   time.UnixMilli(rec.TimestampMs).UTC(),
			BlockNumber: rec.BlockNumber,
			Status:      status,
		})

		if len(pending) >= l.chunkSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

// resolveUserBestEffort maps a wallet address to a user id if one exists.
// A missing user is not an error; the transaction keeps the raw address.
func (l *Loader) resolveUserBestEffort(ctx context.Context, resolver *Resolver, address string) (*int64, error) {
	if address == "" {
		return nil, nil
	}

	id, err := resolver.ResolveUser(ctx, address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", address, err)
	}
	return &id, nil
}

// LoadMarketData ingests a market rollup batch (create-if-absent by unique
// (protocol_id, date)). Records whose protocol cannot be resolved are
// dropped; the rollup pass never creates protocols.
func (l *Loader) LoadMarketData(ctx context.Context, records []MarketRecord) (Result, error) {
	return l.loadMarketData(ctx, l.newRunResolver(), records)
}

func (l *Loader) loadMarketData(ctx context.Context, resolver *Resolver, records []MarketRecord) (Result, error) {
	var res Result
	seen := make(map[string]struct{})
	var pending []*domain.MarketData

	flush := func() error {
		created, skipped, err := flushChunk(ctx, l.marketData.InsertBulk, pending)
		if err != nil {
			return err
		}
		res.Created += created
		res.Skipped += skipped
		observability.RecordCreated(entityMarketData, created)
		if skipped > 0 {
			observability.RecordSkipped(entityMarketData, reasonDuplicate, skipped)
		}
		pending = pending[:0]
		return nil
	}

	for _, rec := range records {
		if rec.ProtocolName == "" || rec.DateMs == 0 {
			l.logger.Printf("Skipping market record with missing required fields: protocol=%q", rec.ProtocolName)
			res.Skipped++
			observability.RecordSkipped(entityMarketData, reasonValidation, 1)
			continue
		}

		protoID, err := resolver.ResolveProtocol(ctx, rec.ProtocolName)
		if errors.Is(err, storage.ErrNotFound) {
			l.logger.Printf("Dropping market record: protocol %q unresolved", rec.ProtocolName)
			res.Skipped++
			observability.RecordSkipped(entityMarketData, reasonUnresolved, 1)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("resolve protocol %q: %w", rec.ProtocolName, err)
		}

		date := time.UnixMilli(rec.DateMs).UTC().Truncate(24 * time.Hour)
		key := fmt.Sprintf("%d|%s", protoID, date.Format(time.DateOnly))
		if _, dup := seen[key]; dup {
			res.Skipped++
			observability.RecordSkipped(entityMarketData, reasonDuplicate, 1)
			continue
		}
		seen[key] = struct{}{}

		// Rollup rows are append-only: an existing (protocol, date) wins
		if _, err := l.marketData.GetByProtocolDate(ctx, protoID, date); err == nil {
			res.Skipped++
			observability.RecordSkipped(entityMarketData, reasonDuplicate, 1)
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return res, fmt.Errorf("check market data %s/%s: %w", rec.ProtocolName, date.Format(time.DateOnly), err)
		}

		pending = append(pending, &domain.MarketData{
			ProtocolID:          protoID,
			Date:                date,
			TotalVolume:         decimal.NewFromFloat(rec.TotalVolume),
			TransactionCount:    rec.TransactionCount,
			UniqueUsers:         rec.UniqueUsers,
			AvgTransactionValue: decimal.NewFromFloat(rec.AvgTransactionValue),
			TotalFees:           decimal.NewFromFloat(rec.TotalFees),
		})

		if len(pending) >= l.chunkSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

// LoadFile reads one batch file and runs the pass for its kind.
func (l *Loader) LoadFile(ctx context.Context, kind Kind, path string) (Result, error) {
	return l.timedLoadFile(ctx, l.newRunResolver(), kind, path)
}

// LoadDir loads the four well-known batch files from dir in foreign-key
// order, sharing one resolver across the passes. Missing files are skipped.
func (l *Loader) LoadDir(ctx context.Context, dir string) (map[Kind]Result, error) {
	resolver := l.newRunResolver()
	results := make(map[Kind]Result)

	for _, f := range dirFiles {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return results, fmt.Errorf("stat %s: %w", path, err)
		}

		res, err := l.timedLoadFile(ctx, resolver, f.kind, path)
		results[f.kind] = res
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

func (l *Loader) timedLoadFile(ctx context.Context, resolver *Resolver, kind Kind, path string) (Result, error) {
	started := time.Now()
	res, err := l.loadFile(ctx, resolver, kind, path)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordLoad(string(kind), status, time.Since(started).Seconds())
	if err == nil {
		observability.DefaultMetrics.LastSuccessfulLoad.Set(float64(time.Now().Unix()))
		l.logger.Printf("Loaded %s from %s: created=%d skipped=%d", kind, path, res.Created, res.Skipped)
	}

	return res, err
}

func (l *Loader) loadFile(ctx context.Context, resolver *Resolver, kind Kind, path string) (Result, error) {
	switch kind {
	case KindContracts:
		records, err := ReadContracts(path)
		if err != nil {
			return Result{}, err
		}
		return l.loadContracts(ctx, resolver, records)
	case KindUsers:
		records, err := ReadUsers(path)
		if err != nil {
			return Result{}, err
		}
		return l.loadUsers(ctx, resolver, records)
	case KindTransactions:
		records, err := ReadTransactions(path)
		if err != nil {
			return Result{}, err
		}
		return l.loadTransactions(ctx, resolver, records)
	case KindMarketData:
		records, err := ReadMarketData(path)
		if err != nil {
			return Result{}, err
		}
		return l.loadMarketData(ctx, resolver, records)
	default:
		return Result{}, fmt.Errorf("unknown batch kind %q", kind)
	}
}

// flushChunk commits one chunk through the store's atomic bulk insert. A
// duplicate-key failure means a concurrent run already committed one of
// these rows; the store rolled the chunk back, so its records count as
// skipped and the already-committed prefix is retained.
func flushChunk[T any](ctx context.Context, insert func(context.Context, []T) error, pending []T) (created, skipped int, err error) {
	if len(pending) == 0 {
		return 0, 0, nil
	}

	if err := insert(ctx, pending); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return 0, len(pending), nil
		}
		return 0, 0, err
	}

	return len(pending), 0, nil
}

// msToTime converts optional unix milliseconds to a UTC timestamp.
func msToTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
