package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewPhotoUsecase,
	NewReviewUsecase,
	NewModerationUsecase,
	wire.Bind(new(ModerationQueue), new(*ModerationUsecase)),
)
