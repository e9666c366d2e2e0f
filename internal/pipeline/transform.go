package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tourkit/address-resolver/internal/domain"
)

// StopResolver resolves one tour-plan record into a stop.
type StopResolver interface {
	ResolveStop(ctx context.Context, rec domain.RawStopRecord) (domain.Stop, error)
}

// StopTransformer implements Transformer by parsing the raw payload and
// handing the record to the resolver.
type StopTransformer struct {
	resolver StopResolver
	logger   *slog.Logger
}

// NewTransformer creates a StopTransformer.
func NewTransformer(resolver StopResolver, logger *slog.Logger) *StopTransformer {
	return &StopTransformer{resolver: resolver, logger: logger}
}

func (t *StopTransformer) Transform(ctx context.Context, raw domain.RawMessage) (domain.Stop, error) {
	var rec domain.RawStopRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return domain.Stop{}, fmt.Errorf("parse stop record: %w", err)
	}
	if rec.Name == "" && rec.Street == "" {
		return domain.Stop{}, fmt.Errorf("stop record has neither name nor street")
	}

	return t.resolver.ResolveStop(ctx, rec)
}
