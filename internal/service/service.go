// Package service maps transport requests onto the business usecases.
package service

import "github.com/google/wire"

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewPhotoService, NewReviewService)
