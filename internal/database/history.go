package database

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/vprok-price-parser/internal/models"
)

const (
	EventTypePriceObserved = "PRODUCT_PRICE_OBSERVED"
	AggregateTypeProduct   = "product"
	DefaultTargetStream    = "stream:price_observations"
)

//go:embed schema.sql
var schemaSQL string

// PriceObservedPayload is the body of a PRODUCT_PRICE_OBSERVED event.
type PriceObservedPayload struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	Timestamp      time.Time `json:"timestamp"`
	RunID          string    `json:"run_id"`
	ProductID      string    `json:"product_id"`
	Region         string    `json:"region"`
	URL            string    `json:"url"`
	Price          string    `json:"price"`
	PriceOld       *string   `json:"price_old"`
	Rating         string    `json:"rating"`
	ReviewCount    string    `json:"review_count"`
	Attempt        int       `json:"attempt"`
	ScreenshotPath string    `json:"screenshot_path"`
	Source         string    `json:"source"`
}

func NewPriceObservedPayload(eventID string, obs *models.Observation) *PriceObservedPayload {
	return &PriceObservedPayload{
		EventID:        eventID,
		EventType:      EventTypePriceObserved,
		Timestamp:      obs.ScrapedAt,
		RunID:          obs.RunID,
		ProductID:      obs.ProductID,
		Region:         obs.Region,
		URL:            obs.URL,
		Price:          obs.Properties.Price,
		PriceOld:       obs.Properties.PriceOld,
		Rating:         obs.Properties.Rating,
		ReviewCount:    obs.Properties.ReviewCount,
		Attempt:        obs.Attempt,
		ScreenshotPath: obs.ScreenshotPath,
		Source:         "vprok-parser",
	}
}

// NewPriceObservedEvent builds the outbox event announcing obs on stream.
func NewPriceObservedEvent(obs *models.Observation, stream string) (*OutboxEvent, error) {
	if stream == "" {
		stream = DefaultTargetStream
	}

	id := uuid.New()
	data, err := json.Marshal(NewPriceObservedPayload(id.String(), obs))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &OutboxEvent{
		ID:            id,
		AggregateType: AggregateTypeProduct,
		AggregateID:   obs.ProductID,
		EventType:     EventTypePriceObserved,
		Payload:       data,
		TargetStream:  stream,
	}, nil
}

// HistoryRepository stores every successful observation. When a stream is
// set, the observation and its outbox event are written in one transaction.
type HistoryRepository struct {
	db     *DB
	outbox *OutboxRepository
	stream string
	logger *slog.Logger
}

// NewHistoryRepository returns a repository that queues events for stream.
// An empty stream disables events.
func NewHistoryRepository(db *DB, stream string, logger *slog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		outbox: NewOutboxRepository(db),
		stream: stream,
		logger: logger.With("component", "history"),
	}
}

// Migrate creates the tables if they do not exist.
func (r *HistoryRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Record(ctx context.Context, obs *models.Observation) error {
	var event *OutboxEvent
	if r.stream != "" {
		var err error
		event, err = NewPriceObservedEvent(obs, r.stream)
		if err != nil {
			return err
		}
	}

	runID, err := uuid.Parse(obs.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", obs.RunID, err)
	}

	query := `
		INSERT INTO price_observations (
			id, run_id, product_id, region, url,
			price, price_old, rating, review_count,
			attempt, text_path, screenshot_path, scraped_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	err = r.db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			uuid.New(), runID, obs.ProductID, obs.Region, obs.URL,
			obs.Properties.Price, obs.Properties.PriceOld, obs.Properties.Rating, obs.Properties.ReviewCount,
			obs.Attempt, obs.TextPath, obs.ScreenshotPath, obs.ScrapedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}

		if event == nil {
			return nil
		}
		return r.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("failed to record observation: %w", err)
	}

	r.logger.Info("observation recorded",
		"run_id", obs.RunID,
		"product_id", obs.ProductID,
		"region", obs.Region,
		"event_queued", event != nil)

	return nil
}

// Latest returns up to limit observations of a product, newest first. An
// empty region matches all regions.
func (r *HistoryRepository) Latest(ctx context.Context, productID, region string, limit int) ([]*models.Observation, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT
			run_id, product_id, region, url,
			price, price_old, rating, review_count,
			attempt, text_path, screenshot_path, scraped_at
		FROM price_observations
		WHERE product_id = $1
			AND ($2 = '' OR region = $2)
		ORDER BY scraped_at DESC
		LIMIT $3`

	rows, err := r.db.pool.Query(ctx, query, productID, region, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []*models.Observation
	for rows.Next() {
		var (
			obs   models.Observation
			runID uuid.UUID
		)
		err := rows.Scan(
			&runID, &obs.ProductID, &obs.Region, &obs.URL,
			&obs.Properties.Price, &obs.Properties.PriceOld, &obs.Properties.Rating, &obs.Properties.ReviewCount,
			&obs.Attempt, &obs.TextPath, &obs.ScreenshotPath, &obs.ScrapedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.RunID = runID.String()
		observations = append(observations, &obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return observations, nil
}
