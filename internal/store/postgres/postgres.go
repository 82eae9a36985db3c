// Package postgres implements store.Store on PostgreSQL through gorm.
// Row locks are SELECT ... FOR UPDATE; rows that may not exist yet
// (balances, positions) are inserted with ON CONFLICT DO NOTHING before
// being locked, and idempotency keys are serialized with transaction-scoped
// advisory locks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

const (
	defaultHost    = "localhost"
	defaultPort    = 5432
	defaultSSLMode = "disable"
)

// Postgres error codes the store classifies.
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeQueryCanceled        = "57014"
	codeTooManyConnections   = "53300"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"
)

// Options configures the connection pool.
type Options struct {
	// ConnString, when set, is used as is; the discrete fields are ignored.
	ConnString string
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// LockTimeout bounds every row lock wait inside a unit of work.
	LockTimeout time.Duration

	Config *gorm.Config
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db          *gorm.DB
	sql         *sql.DB
	lockTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

// Open connects to PostgreSQL and sizes the pool.
func Open(opt Options) (*Store, error) {
	dsn, err := opt.dsn()
	if err != nil {
		return nil, err
	}

	cfg := opt.Config
	if cfg == nil {
		cfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}

	gdb, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", classify(err))
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if opt.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(opt.MaxIdleConns)
	}
	if opt.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(opt.ConnMaxLifetime)
	}

	return New(gdb, sqldb, opt.LockTimeout), nil
}

// New wraps an existing connection.
func New(gdb *gorm.DB, sqldb *sql.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = store.DefaultLockTimeout
	}
	return &Store{db: gdb, sql: sqldb, lockTimeout: lockTimeout}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("migrate: %w", classify(err))
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sql == nil {
		return nil
	}
	return classify(s.sql.PingContext(ctx))
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// Do runs fn inside one database transaction. The commit is skipped when
// fn fails or ctx is done.
func (s *Store) Do(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
		if err := fn(&pgTx{db: db}); err != nil {
			return err
		}
		return ctx.Err()
	})
	return classify(err)
}

// SetVerification upserts the KYC outcome for userID.
func (s *Store) SetVerification(ctx context.Context, userID string, status domain.VerificationStatus) error {
	row := verificationRow{UserID: userID, Status: string(status), UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&row).Error
	return classify(err)
}

// Balance returns the committed balance, or an empty one.
func (s *Store) Balance(ctx context.Context, userID string) (*domain.EscrowBalance, error) {
	var row balanceRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewEscrowBalance(userID, time.Time{}), nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return row.toDomain(), nil
}

func (s *Store) Inventory(ctx context.Context, propertyID string) (*domain.PropertyInventory, error) {
	var row inventoryRow
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrPropertyNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) SellRequest(ctx context.Context, id string) (*domain.SellRequest, error) {
	var row sellRequestRow
	if err := s.db.WithContext(ctx).Where("sell_request_id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrSellRequestNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) Hold(ctx context.Context, id string) (*domain.ShareHold, error) {
	var row holdRow
	if err := s.db.WithContext(ctx).Where("hold_id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrHoldNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) Investment(ctx context.Context, id string) (*domain.Investment, error) {
	var row investmentRow
	if err := s.db.WithContext(ctx).Where("investment_id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrInvestmentNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) Position(ctx context.Context, key domain.PositionKey) (*domain.PositionSnapshot, error) {
	var row positionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND property_id = ?", key.UserID, key.PropertyID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewPositionSnapshot(key, time.Time{}), nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return row.toDomain(), nil
}

func (s *Store) Transactions(ctx context.Context, userID string, page, limit int) ([]*domain.Transaction, int, error) {
	query := s.db.WithContext(ctx).Model(&transactionRow{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var rows []transactionRow
	err := query.
		Order("created_at DESC").Order("transaction_id DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, classify(err)
	}

	result := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, int(total), nil
}

func (s *Store) PositionKeys(ctx context.Context) ([]domain.PositionKey, error) {
	var rows []struct {
		UserID     string
		PropertyID string
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT user_id, property_id FROM investments
		UNION
		SELECT buyer_id, property_id FROM share_holds WHERE status = ?
		UNION
		SELECT seller_id, property_id FROM share_holds WHERE status = ?
		UNION
		SELECT user_id, property_id FROM position_snapshots
		ORDER BY 1, 2
	`, domain.HoldStatusSettled, domain.HoldStatusSettled).Scan(&rows).Error
	if err != nil {
		return nil, classify(err)
	}

	keys := make([]domain.PositionKey, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, domain.PositionKey{UserID: r.UserID, PropertyID: r.PropertyID})
	}
	return keys, nil
}

func (s *Store) ExpiredHoldIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&holdRow{}).
		Where("status = ? AND hold_expires_at <= ?", domain.HoldStatusPending, now).
		Order("hold_expires_at").Order("hold_id").
		Limit(noLimit(limit)).
		Pluck("hold_id", &ids).Error
	return ids, classify(err)
}

func (s *Store) ExpiredSellRequestIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	open := []string{
		string(domain.SellRequestStatusActive),
		string(domain.SellRequestStatusPartiallyHeld),
		string(domain.SellRequestStatusSoldOut),
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&sellRequestRow{}).
		Where("status IN ? AND remaining_shares > 0 AND expires_at <= ?", open, now).
		Where("NOT EXISTS (SELECT 1 FROM share_holds h WHERE h.sell_request_id = sell_requests.sell_request_id AND h.status = ?)",
			domain.HoldStatusPending).
		Order("expires_at").Order("sell_request_id").
		Limit(noLimit(limit)).
		Pluck("sell_request_id", &ids).Error
	return ids, classify(err)
}

func noLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return classify(err)
}

// classify maps driver failures onto the domain's retryable errors. Domain
// errors and nil pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure, codeQueryCanceled:
			return fmt.Errorf("%s: %w", pgErr.Message, domain.ErrLockTimeout)
		case codeTooManyConnections, codeAdminShutdown, codeCannotConnectNow:
			return fmt.Errorf("%s: %w", pgErr.Message, domain.ErrStorageUnavailable)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%v: %w", err, domain.ErrStorageUnavailable)
	}
	return err
}

func (opt Options) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
