package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/nadlantech/appraisal-engine/internal/application/reporting"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
)

// ErrReportNotFound is returned when no archived report matches the key.
var ErrReportNotFound = errors.New(errors.ErrCodeNotFound, "archived report not found")

const reportContentType = "application/json"

// ReportStore archives drafted reports. Objects are written once and never
// rewritten; a regenerated report gets a fresh report ID and a fresh key.
type ReportStore struct {
	client        *Client
	logger        logging.Logger
	presignExpiry time.Duration
}

// NewReportStore builds the archive accessor. presignExpiry bounds how long
// a download link stays valid.
func NewReportStore(client *Client, presignExpiry time.Duration, log logging.Logger) *ReportStore {
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &ReportStore{client: client, logger: log, presignExpiry: presignExpiry}
}

// ObjectKey derives the archive key of a report from its creation time and
// ID, partitioned by month for retention tooling.
func ObjectKey(reportID string, createdAt time.Time) string {
	return fmt.Sprintf("reports/%04d/%02d/%s.json", createdAt.Year(), int(createdAt.Month()), reportID)
}

// Archive stores the report as JSON and returns its object key.
func (s *ReportStore) Archive(ctx context.Context, report *reporting.Report) (string, error) {
	if report == nil || report.ID == "" {
		return "", errors.New(errors.ErrCodeValidation, "report with id required")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal report")
	}

	key := ObjectKey(report.ID, time.Time(report.CreatedAt))
	_, err = s.client.api.PutObject(ctx, s.client.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: reportContentType,
			UserMetadata: map[string]string{
				"report-id": report.ID,
				"language":  string(report.Language),
			},
		})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportArchiveFailed, "failed to archive report")
	}

	s.logger.Info("report archived",
		logging.String("report_id", report.ID),
		logging.String("key", key),
		logging.Int("bytes", len(data)))
	return key, nil
}

// Load fetches an archived report by its object key.
func (s *ReportStore) Load(ctx context.Context, key string) (*reporting.Report, error) {
	obj, err := s.client.api.GetObject(ctx, s.client.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to fetch archived report")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrReportNotFound
		}
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to read archived report")
	}

	var report reporting.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal archived report")
	}
	return &report, nil
}

// Exists reports whether an object is present under key.
func (s *ReportStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.api.StatObject(ctx, s.client.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeExternalService, "failed to stat archived report")
	}
	return true, nil
}

// PresignedDownloadURL returns a time-limited download link for key.
func (s *ReportStore) PresignedDownloadURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.api.PresignedGetObject(ctx, s.client.bucket, key, s.presignExpiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "failed to presign download url")
	}
	return u.String(), nil
}

// Delete removes an archived report. Retention tooling use only.
func (s *ReportStore) Delete(ctx context.Context, key string) error {
	if err := s.client.api.RemoveObject(ctx, s.client.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to delete archived report")
	}
	s.logger.Warn("archived report deleted", logging.String("key", key))
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
