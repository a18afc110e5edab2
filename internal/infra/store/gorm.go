package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

var tracer = otel.Tracer("store")

// OpenSQLite opens (and migrates) the ledger at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&TransactionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

// OpenSQLiteReadOnly opens path with SQLite's read-only mode, for the
// executor. SQLite ignores read-only transaction options.
func OpenSQLiteReadOnly(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file:"+path+"?mode=ro"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open read-only database: %w", err)
	}
	return db, nil
}

// GormRepository implements port.TransactionRepository over GORM.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Fetch returns the non-deleted transactions dated within [start, end].
func (r *GormRepository) Fetch(ctx context.Context, start, end time.Time, f domain.TransactionFilters) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "GormRepository.Fetch")
	defer span.End()

	from, to := dayRange(start, end)
	q := r.db.WithContext(ctx).
		Where("fecha >= ? AND fecha < ?", from, to).
		Order("fecha, id")

	if labels := typeLabelsFor(f.Types); len(labels) > 0 {
		q = q.Where("tipo IN ?", labels)
	}
	if f.Category != "" {
		q = q.Where("categoria = ?", f.Category)
	}
	if f.Locality != "" {
		q = q.Where("localidad = ?", f.Locality)
	}
	if f.Counterparty != "" {
		q = q.Where("nombre_contraparte = ?", f.Counterparty)
	}

	var records []TransactionRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(records))
	for _, rec := range records {
		tx, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// Insert stores txs, assigning ids where missing.
func (r *GormRepository) Insert(ctx context.Context, txs ...domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	records := make([]TransactionRecord, 0, len(txs))
	for _, tx := range txs {
		if !tx.Type.Valid() {
			return &domain.ErrValidation{Field: "type", Message: "unknown transaction type " + string(tx.Type)}
		}
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		records = append(records, recordFromDomain(tx))
	}
	if err := r.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	return nil
}

// SoftDelete marks a transaction as deleted.
func (r *GormRepository) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&TransactionRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

// Ping checks the underlying connection.
func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
