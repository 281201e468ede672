package kpi

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/usage"
)

// Cache stores encoded Computed values under CacheKey keys. Entries expire
// after ttl; they are never invalidated on write.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheKey identifies a computation: organization, kind, exact window bounds
// and the kind-specific parameters. Different windows never share a key.
func CacheKey(orgID string, def Definition, w usage.Window) string {
	parts := []string{
		orgID,
		def.Kind.String(),
		w.Start.UTC().Format(time.RFC3339Nano),
		w.End.UTC().Format(time.RFC3339Nano),
	}
	switch def.Kind {
	case KindElectricityMix:
		sources := make([]string, 0, len(def.mixSources()))
		for _, s := range def.mixSources() {
			sources = append(sources, string(s))
		}
		sort.Strings(sources)
		parts = append(parts, strings.Join(sources, ","))
	case KindGHGIntensity:
		parts = append(parts, string(def.basis()))
	}
	return strings.Join(parts, "|")
}
