package tickets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dakino/household-service/config"
	"github.com/dakino/household-service/internal/core/ai"
	"github.com/dakino/household-service/internal/core/cloud"
	"github.com/dakino/household-service/internal/core/matching"
	"github.com/dakino/household-service/pkg/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("tickets-service")

var ErrEmptyImage = errors.New("ticket image is empty")

// ImageArchive keeps a copy of every scanned photo
type ImageArchive interface {
	Enabled() bool
	UploadTicketImage(ctx context.Context, householdID, userID uuid.UUID, fileName string, content io.Reader, contentType string, size int64) (*cloud.FileUploadResult, error)
}

// CatalogSource provides the household catalog to match against
type CatalogSource interface {
	Catalog(ctx context.Context, householdID uuid.UUID) ([]matching.CatalogProduct, error)
}

// ScanStore records scan outcomes for later review
type ScanStore interface {
	SaveScan(ctx context.Context, rec ScanRecord) (uuid.UUID, error)
}

type ScanRequest struct {
	HouseholdID uuid.UUID
	UserID      uuid.UUID
	FileName    string
	ContentType string
	Data        []byte
}

type ScanResult struct {
	ScanID   *uuid.UUID             `json:"scan_id,omitempty"`
	ImageURL string                 `json:"image_url"`
	Ticket   matching.MatchedTicket `json:"ticket"`
	Stats    matching.Stats         `json:"stats"`
}

type ScanRecord struct {
	HouseholdID uuid.UUID
	UserID      uuid.UUID
	ImageURL    string
	Ticket      matching.MatchedTicket
	Stats       matching.Stats
}

type Service struct {
	vision  ai.VisionClient
	archive ImageArchive
	catalog CatalogSource
	store   ScanStore
	matcher matching.Matcher
	image   config.ImageConfig
	logger  *slog.Logger
}

// NewService wires the scan pipeline. archive and store may be nil.
func NewService(vision ai.VisionClient, archive ImageArchive, catalog CatalogSource, store ScanStore, cfg *config.Config, logger *slog.Logger) *Service {
	mc := cfg.GetMatchingConfig()
	return &Service{
		vision:  vision,
		archive: archive,
		catalog: catalog,
		store:   store,
		matcher: matching.NewMatcher(mc.CandidateFloor, mc.AcceptThreshold),
		image:   cfg.GetImageConfig(),
		logger:  logger,
	}
}

func recordScan(ctx context.Context, outcome string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	telemetry.TicketScansTotal.Add(ctx, 1, attrs)
	telemetry.TicketScanDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// Scan extracts a ticket photo and matches its lines against the household catalog.
// Archiving runs alongside extraction and its failure only leaves ImageURL empty.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	ctx, span := tracer.Start(ctx, "tickets.Scan")
	defer span.End()

	start := time.Now()

	data, contentType, err := s.prepare(ctx, req.Data, req.ContentType)
	if err != nil {
		recordScan(ctx, "invalid_image", start)
		return nil, err
	}

	archiveEnabled := s.archive != nil && s.archive.Enabled()

	uploadChan := make(chan *cloud.FileUploadResult, 1)
	uploadErrChan := make(chan error, 1)
	visionChan := make(chan *ai.VisionTicket, 1)
	visionErrChan := make(chan error, 1)

	if archiveEnabled {
		go func() {
			result, err := s.archive.UploadTicketImage(ctx, req.HouseholdID, req.UserID,
				req.FileName, bytes.NewReader(data), contentType, int64(len(data)))
			if err != nil {
				uploadErrChan <- err
				return
			}
			uploadChan <- result
		}()
	}

	go func() {
		vt, err := s.vision.ExtractTicket(ctx, data, contentType)
		if err != nil {
			visionErrChan <- err
			return
		}
		visionChan <- vt
	}()

	pending := 1
	if archiveEnabled {
		pending = 2
	}

	var (
		upload               *cloud.FileUploadResult
		extracted            *ai.VisionTicket
		uploadErr, visionErr error
	)
	for i := 0; i < pending; i++ {
		select {
		case upload = <-uploadChan:
		case uploadErr = <-uploadErrChan:
		case extracted = <-visionChan:
		case visionErr = <-visionErrChan:
		case <-ctx.Done():
			recordScan(ctx, "cancelled", start)
			return nil, fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
	}

	if visionErr != nil {
		span.RecordError(visionErr)
		recordScan(ctx, "vision_error", start)
		s.logger.Error("Failed to extract ticket",
			"error", visionErr,
			"household_id", req.HouseholdID,
			"user_id", req.UserID)
		return nil, fmt.Errorf("failed to extract ticket: %w", visionErr)
	}

	result := &ScanResult{}
	if uploadErr != nil {
		telemetry.TicketArchiveFailures.Add(ctx, 1)
		s.logger.Warn("Ticket photo not archived, continuing without image URL",
			"error", uploadErr,
			"household_id", req.HouseholdID)
	} else if upload != nil {
		result.ImageURL = upload.PublicURL
	}

	matched, err := s.Match(ctx, req.HouseholdID, Coerce(*extracted))
	if err != nil {
		span.RecordError(err)
		recordScan(ctx, "catalog_error", start)
		return nil, err
	}
	result.Ticket = matched
	result.Stats = matched.Stats()

	if s.store != nil {
		scanID, err := s.store.SaveScan(ctx, ScanRecord{
			HouseholdID: req.HouseholdID,
			UserID:      req.UserID,
			ImageURL:    result.ImageURL,
			Ticket:      matched,
			Stats:       result.Stats,
		})
		if err != nil {
			span.RecordError(err)
			s.logger.Warn("Failed to record ticket scan", "error", err, "household_id", req.HouseholdID)
		} else {
			result.ScanID = &scanID
		}
	}

	recordScan(ctx, "success", start)
	s.logger.Info("Ticket scanned",
		"household_id", req.HouseholdID,
		"items", len(matched.Items),
		"exact", result.Stats.Exact,
		"partial", result.Stats.Partial,
		"none", result.Stats.None,
		"archived", result.ImageURL != "",
		"duration", time.Since(start))

	return result, nil
}

// Analyze runs extraction only and returns the coerced ticket
func (s *Service) Analyze(ctx context.Context, data []byte, contentType string) (*matching.Ticket, error) {
	ctx, span := tracer.Start(ctx, "tickets.Analyze")
	defer span.End()

	start := time.Now()

	prepared, preparedType, err := s.prepare(ctx, data, contentType)
	if err != nil {
		recordScan(ctx, "invalid_image", start)
		return nil, err
	}

	vt, err := s.vision.ExtractTicket(ctx, prepared, preparedType)
	if err != nil {
		span.RecordError(err)
		recordScan(ctx, "vision_error", start)
		return nil, fmt.Errorf("failed to extract ticket: %w", err)
	}

	ticket := Coerce(*vt)
	recordScan(ctx, "analyzed", start)
	return &ticket, nil
}

// Match matches an already extracted ticket against the current household catalog
func (s *Service) Match(ctx context.Context, householdID uuid.UUID, ticket matching.Ticket) (matching.MatchedTicket, error) {
	ctx, span := tracer.Start(ctx, "tickets.Match")
	defer span.End()

	catalog, err := s.catalog.Catalog(ctx, householdID)
	if err != nil {
		span.RecordError(err)
		return matching.MatchedTicket{}, fmt.Errorf("failed to load catalog: %w", err)
	}

	matched := s.matcher.Process(ticket, catalog)

	stats := matched.Stats()
	for confidence, n := range map[matching.Confidence]int{
		matching.ConfidenceExact:   stats.Exact,
		matching.ConfidencePartial: stats.Partial,
		matching.ConfidenceNone:    stats.None,
	} {
		if n > 0 {
			telemetry.MatchOutcomesTotal.Add(ctx, int64(n),
				metric.WithAttributes(attribute.String("confidence", string(confidence))))
		}
	}

	return matched, nil
}

func (s *Service) prepare(ctx context.Context, data []byte, contentType string) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	prepared, preparedType, err := prepareImage(data, contentType, s.image.MaxWidth, s.image.Quality)
	if err != nil {
		return nil, "", err
	}

	telemetry.TicketImageBytes.Record(ctx, int64(len(data)), metric.WithAttributes(attribute.String("stage", "original")))
	telemetry.TicketImageBytes.Record(ctx, int64(len(prepared)), metric.WithAttributes(attribute.String("stage", "compressed")))

	return prepared, preparedType, nil
}
