package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"estateledger/internal/core/id"
	"estateledger/internal/domain/events"
)

// CompressionAlgo specifies how an audit payload is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which entries are
// stored zstd-compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditEntry is one row of the audit journal.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	EventType         string          `db:"event_type"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditJournal keeps a permanent record of every ledger event. Unlike the
// outbox, rows are never consumed.
type AuditJournal struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ events.Publisher = (*AuditJournal)(nil)

// NewAuditJournal creates a journal. threshold ≤ 0 selects
// DefaultCompressThreshold.
func NewAuditJournal(txManager *TxManager, threshold int) (*AuditJournal, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditJournal{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Publish implements events.Publisher.
func (j *AuditJournal) Publish(ctx context.Context, evs ...events.Event) error {
	for _, e := range evs {
		entry, err := j.entry(e)
		if err != nil {
			return err
		}
		if err := j.insert(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (j *AuditJournal) entry(e events.Event) (AuditEntry, error) {
	changes, err := json.Marshal(e.Payload)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}

	entry := AuditEntry{
		ID:              id.New(),
		EntityType:      e.AggregateType,
		EntityID:        e.AggregateID,
		EventType:       e.Type,
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       e.OccurredAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(changes) > j.compressThreshold {
		entry.ChangesCompressed = j.encoder.EncodeAll(changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

func (j *AuditJournal) insert(ctx context.Context, entry AuditEntry) error {
	_, err := j.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, event_type,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.EventType,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries for an entity, decompressed.
func (j *AuditJournal) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := pgxscan.Select(ctx, j.txManager.GetQuerier(ctx), &entries, `
		SELECT id, entity_type, entity_id, event_type,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	for i := range entries {
		if err := j.expand(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (j *AuditJournal) expand(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := j.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = raw
	e.ChangesCompressed = nil
	return nil
}
