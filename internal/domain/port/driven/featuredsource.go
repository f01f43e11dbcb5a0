package driven

import (
	"context"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
)

// FeaturedSource provides the curated list of featured apps.
type FeaturedSource interface {
	FetchFeatured(ctx context.Context) ([]model.FeaturedApp, error)
}
