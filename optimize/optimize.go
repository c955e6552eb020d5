package optimize

import (
	"context"
	"fmt"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/observability"
)

type Config struct {
	// CombineDuplicateStreams folds byte-identical streams (same dictionary
	// and payload) into one object. Fonts and images repeated across
	// merged invoices are the usual hit.
	CombineDuplicateStreams bool
	// CompressStreams Flate-encodes streams that carry no /Filter.
	CompressStreams bool
	// CompressionLevel is the zlib level used by CompressStreams. Zero means
	// the default level.
	CompressionLevel int
	// CleanUnreachable drops objects not reachable from the trailer.
	CleanUnreachable bool
	Logger           observability.Logger
}

// Stats reports what a pass changed.
type Stats struct {
	StreamsCombined   int
	StreamsCompressed int
	ObjectsRemoved    int
}

type Optimizer struct {
	config Config
	log    observability.Logger
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config, log: observability.OrNop(config.Logger)}
}

// Optimize rewrites doc in place.
func (o *Optimizer) Optimize(ctx context.Context, doc *raw.Document) (Stats, error) {
	var stats Stats
	if o.config.CleanUnreachable {
		stats.ObjectsRemoved = o.cleanUnreachable(doc)
	}

	if o.config.CombineDuplicateStreams {
		n, err := o.combineDuplicateStreams(ctx, doc)
		if err != nil {
			return stats, fmt.Errorf("failed to combine duplicate streams: %w", err)
		}
		stats.StreamsCombined = n
	}

	if o.config.CompressStreams {
		n, err := o.compressStreams(ctx, doc)
		if err != nil {
			return stats, fmt.Errorf("failed to compress streams: %w", err)
		}
		stats.StreamsCompressed = n
	}

	o.log.Debug("optimized document",
		observability.Int("streams_combined", stats.StreamsCombined),
		observability.Int("streams_compressed", stats.StreamsCompressed),
		observability.Int("objects_removed", stats.ObjectsRemoved),
	)
	return stats, nil
}
