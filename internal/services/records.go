package services

import (
	"bytes"
	"context"
	"time"

	"vizintel/api/internal/archive"
	"vizintel/api/internal/auth"
	"vizintel/api/internal/common"
	"vizintel/api/internal/live"
	"vizintel/api/internal/logging"
	"vizintel/api/internal/metrics"
	"vizintel/api/internal/model"
	"vizintel/api/internal/repository"
	"vizintel/api/internal/sheet"
)

const ManualFileName = "Manual Entry"

// Records manages owner-scoped datasets and announces writes on the owner's
// live channel.
type Records struct {
	records   repository.RecordRepository
	publisher Publisher
	archive   archive.Archive
	metrics   *metrics.Metrics
	log       logging.Logger
	now       func() time.Time
}

func NewRecords(records repository.RecordRepository, publisher Publisher, arch archive.Archive, m *metrics.Metrics, log logging.Logger) *Records {
	return &Records{
		records:   records,
		publisher: publisher,
		archive:   arch,
		metrics:   m,
		log:       log.With("module", "records"),
		now:       time.Now,
	}
}

// CreateManual stores entries typed in by the owner. At least one entry is
// required.
func (s *Records) CreateManual(ctx context.Context, ownerID string, entries []model.Entry) (model.Record, error) {
	if len(entries) == 0 {
		return model.Record{}, common.Invalid("Invalid data format")
	}
	return s.create(ctx, &model.Record{OwnerID: ownerID, Entries: entries, FileName: ManualFileName}, "manual")
}

// Import parses an uploaded workbook, archives the original bytes and stores
// the rows as a record. A failed archive write does not fail the import.
func (s *Records) Import(ctx context.Context, ownerID, fileName, contentType string, body []byte) (model.Record, error) {
	if !sheet.Accepts(contentType) {
		return model.Record{}, common.Invalid("Only Excel files are allowed")
	}
	entries, err := sheet.ParseFirstSheet(bytes.NewReader(body))
	if err != nil {
		return model.Record{}, err
	}

	key := archive.Key(ownerID, fileName, s.now())
	if err := s.archive.Put(ctx, key, contentType, body); err != nil {
		s.log.Warn(ctx, "upload archive failed", "owner_id", ownerID, "key", key, "error", err)
		key = ""
	}
	return s.create(ctx, &model.Record{OwnerID: ownerID, Entries: entries, FileName: fileName, SourceKey: key}, "upload")
}

func (s *Records) create(ctx context.Context, record *model.Record, source string) (model.Record, error) {
	record.CreatedAt = s.now().UTC()
	if err := s.records.CreateRecord(ctx, record); err != nil {
		return model.Record{}, err
	}
	s.metrics.RecordsWritten.WithLabelValues(source).Inc()
	s.log.Info(ctx, "record created", "record_id", record.ID, "owner_id", record.OwnerID, "entries", len(record.Entries), "source", source)
	s.announce(ctx, *record)
	return *record, nil
}

func (s *Records) ListMine(ctx context.Context, ownerID string) ([]model.Record, error) {
	return s.records.ListRecordsByOwner(ctx, ownerID)
}

// ListAll returns summaries of every record. An empty store is ErrNotFound.
func (s *Records) ListAll(ctx context.Context) ([]model.RecordSummary, error) {
	out, err := s.records.ListRecordSummaries(ctx)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, common.ErrNotFound
	}
	return out, nil
}

// ListForOwner lets an admin, or the owner, read one account's records.
func (s *Records) ListForOwner(ctx context.Context, caller *auth.Claims, ownerID string) ([]model.Record, error) {
	if caller == nil || (!caller.IsAdmin() && caller.UserID != ownerID) {
		return nil, common.ErrForbidden
	}
	out, err := s.records.ListRecordsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, common.ErrNotFound
	}
	return out, nil
}

// Replace swaps the whole entry list of a record the caller owns and refreshes
// its timestamp.
func (s *Records) Replace(ctx context.Context, id, ownerID string, entries []model.Entry) (model.Record, error) {
	if entries == nil {
		return model.Record{}, common.Invalid("Invalid data format")
	}
	record, err := s.records.ReplaceRecordEntries(ctx, id, ownerID, entries, s.now())
	if err != nil {
		return model.Record{}, err
	}
	s.metrics.RecordsWritten.WithLabelValues("replace").Inc()
	s.log.Info(ctx, "record replaced", "record_id", id, "owner_id", ownerID, "entries", len(entries))
	s.announce(ctx, record)
	return record, nil
}

func (s *Records) Delete(ctx context.Context, id, ownerID string) error {
	if err := s.records.DeleteOwnedRecord(ctx, id, ownerID); err != nil {
		return err
	}
	s.log.Info(ctx, "record deleted", "record_id", id, "owner_id", ownerID)
	return nil
}

func (s *Records) announce(ctx context.Context, record model.Record) {
	if err := s.publisher.Publish(ctx, record.OwnerID, live.DataUpdate(record)); err != nil {
		s.log.Warn(ctx, "live publish failed", "record_id", record.ID, "error", err)
	}
}
