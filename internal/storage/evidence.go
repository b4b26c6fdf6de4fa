package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/portside-labs/portside/internal/domain"
)

// EvidenceArchive stores the ranked scoring payload behind each
// auto-match as a JSON object, one per order.
type EvidenceArchive struct {
	client *S3Client
}

func NewEvidenceArchive(client *S3Client) *EvidenceArchive {
	return &EvidenceArchive{client: client}
}

type evidencePayload struct {
	OrderNumber string                 `json:"order_number"`
	ArchivedAt  time.Time              `json:"archived_at"`
	Results     []domain.ScoringResult `json:"results"`
}

func evidenceKey(orderNumber string) string {
	return fmt.Sprintf("evidence/%s.json", orderNumber)
}

// ArchiveEvidence writes the full candidate ranking for an order.
// Re-discovery overwrites the previous payload.
func (a *EvidenceArchive) ArchiveEvidence(ctx context.Context, orderNumber string, results []domain.ScoringResult) error {
	payload := evidencePayload{
		OrderNumber: orderNumber,
		ArchivedAt:  time.Now().UTC(),
		Results:     results,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode evidence payload: %w", err)
	}

	return a.client.PutObject(ctx, evidenceKey(orderNumber), body, "application/json")
}

// EvidenceURL returns a presigned download URL for an order's archived
// evidence, or domain.ErrThreadLinkNotFound when none exists.
func (a *EvidenceArchive) EvidenceURL(ctx context.Context, orderNumber string) (string, error) {
	if _, err := a.client.HeadObject(ctx, evidenceKey(orderNumber)); err != nil {
		return "", domain.ErrThreadLinkNotFound
	}
	return a.client.GenerateDownloadURL(ctx, evidenceKey(orderNumber))
}
