package quotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRecord maps the quotation_documents table.
type documentRecord struct {
	StorageKey    string          `gorm:"column:storage_key;primaryKey"`
	SchemaVersion int             `gorm:"column:schema_version;not null"`
	Document      string          `gorm:"column:document;type:jsonb;not null"`
	FinalTotal    decimal.Decimal `gorm:"column:final_total;type:numeric(14,2);not null"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (documentRecord) TableName() string {
	return "quotation_documents"
}

// documentHeader is the part of a document the table indexes.
type documentHeader struct {
	SchemaVersion int `json:"schemaVersion"`
	Costs         struct {
		FinalTotal float64 `json:"finalTotal"`
	} `json:"costs"`
}

// SQLStorage stores documents in the quotation_documents table.
type SQLStorage struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLStorage(db *gorm.DB) (*SQLStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &SQLStorage{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLStorage) Name() string { return "sql" }

func (s *SQLStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var rec documentRecord
	err := s.db.WithContext(ctx).Where("storage_key = ?", key).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load quotation %q: %w", key, err)
	}
	return []byte(rec.Document), nil
}

func (s *SQLStorage) Save(ctx context.Context, key string, document []byte) error {
	var header documentHeader
	if err := json.Unmarshal(document, &header); err != nil {
		return fmt.Errorf("save quotation %q: %w", key, err)
	}
	rec := documentRecord{
		StorageKey:    key,
		SchemaVersion: header.SchemaVersion,
		Document:      string(document),
		FinalTotal:    decimal.NewFromFloat(header.Costs.FinalTotal).Round(2),
		UpdatedAt:     s.now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "document", "final_total", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save quotation %q: %w", key, err)
	}
	return nil
}

func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("storage_key = ?", key).Delete(&documentRecord{}).Error; err != nil {
		return fmt.Errorf("delete quotation %q: %w", key, err)
	}
	return nil
}
