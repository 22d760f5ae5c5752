package service

import (
	"context"
	"sync"

	"epub-reader/internal/domain"
)

// PreloadFlag marks that the sample library has been seeded.
const PreloadFlag = "sample_library_preloaded"

// Preloader seeds the configured sample documents on first start. The flag is
// read at most once per process and only by Run.
type Preloader struct {
	flags     domain.FlagRepository
	documents domain.DocumentService
	samples   []domain.Document
	logger    domain.Logger

	once sync.Once
	err  error
}

func NewPreloader(flags domain.FlagRepository, documents domain.DocumentService, samples []domain.Document, logger domain.Logger) *Preloader {
	return &Preloader{
		flags:     flags,
		documents: documents,
		samples:   samples,
		logger:    logger,
	}
}

// Run performs the one-time preload. Later calls return the first result.
func (p *Preloader) Run(ctx context.Context) error {
	p.once.Do(func() {
		p.err = p.run(ctx)
	})
	return p.err
}

func (p *Preloader) run(ctx context.Context) error {
	done, err := p.flags.GetFlag(ctx, PreloadFlag)
	if err != nil {
		return err
	}
	if done {
		p.logger.Debug("Sample library already preloaded")
		return nil
	}

	for i := range p.samples {
		sample := p.samples[i]
		if _, err := p.documents.CreateDocument(ctx, &sample); err != nil {
			p.logger.Error("Failed to preload document", err, "document_id", sample.ID)
			return err
		}
	}

	// The flag is only set after every document landed, so a failed run retries on next start.
	if err := p.flags.SetFlag(ctx, PreloadFlag, true); err != nil {
		return err
	}
	p.logger.Info("Sample library preloaded", "count", len(p.samples))
	return nil
}
