package data

import (
	"context"
	"strings"
	"time"

	"restroom/internal/biz"
	"restroom/internal/conf"
	"restroom/internal/pkg/moderator"
	"restroom/internal/pkg/vision"

	"github.com/go-kratos/kratos/v2/log"
)

// NewModerationConfig maps bootstrap configuration onto the worker pool
// tuning, falling back to defaults for unset fields.
func NewModerationConfig(mc *conf.Moderation) biz.ModerationConfig {
	cfg := biz.DefaultModerationConfig()
	if mc == nil {
		return cfg
	}
	if mc.Workers > 0 {
		cfg.Workers = mc.Workers
	}
	if mc.StorageTimeoutSeconds > 0 {
		cfg.StorageTimeout = time.Duration(mc.StorageTimeoutSeconds) * time.Second
	}
	if mc.MaxImageEdge > 0 {
		cfg.MaxImageEdge = uint(mc.MaxImageEdge)
	}
	if mc.Bloom.Key != "" {
		cfg.BloomKey = mc.Bloom.Key
	}
	if mc.Bloom.Bits > 0 {
		cfg.BloomBits = mc.Bloom.Bits
	}
	if mc.Bloom.HashFuncs > 0 {
		cfg.BloomHashFuncs = mc.Bloom.HashFuncs
	}
	return cfg
}

// photoClassifier adapts the photo moderator to the biz.Classifier port.
type photoClassifier struct {
	moderator *moderator.PhotoModerator
}

// NewClassifier builds the vision-backed photo classifier from configuration.
func NewClassifier(mc *conf.Moderation, logger log.Logger) biz.Classifier {
	visionCfg := vision.DefaultConfig()
	modCfg := moderator.DefaultPhotoModeratorConfig()
	if mc != nil {
		if mc.Vision.BaseURL != "" {
			visionCfg.BaseURL = mc.Vision.BaseURL
		}
		visionCfg.APIKey = mc.Vision.APIKey
		if mc.Vision.TimeoutSeconds > 0 {
			visionCfg.Timeout = time.Duration(mc.Vision.TimeoutSeconds) * time.Second
		}
		if len(mc.Checks.SubjectLabels) > 0 {
			modCfg.SubjectLabels = mc.Checks.SubjectLabels
		}
		if mc.Checks.SubjectMinScore > 0 {
			modCfg.SubjectMinScore = mc.Checks.SubjectMinScore
		}
		if t := parseLikelihood(mc.Checks.SafetyThreshold); t != vision.LikelihoodUnknown {
			modCfg.SafetyThreshold = t
		}
		if mc.Checks.MaxTextRunes > 0 {
			modCfg.MaxTextRunes = mc.Checks.MaxTextRunes
		}
		if mc.Checks.MinDominantColors > 0 {
			modCfg.MinDominantColors = mc.Checks.MinDominantColors
		}
	}
	modCfg.Timeout = visionCfg.Timeout

	client := vision.NewClient(visionCfg)
	return &photoClassifier{
		moderator: moderator.NewPhotoModerator(modCfg, client, logger),
	}
}

// Classify implements biz.Classifier.
func (c *photoClassifier) Classify(ctx context.Context, image []byte) (*biz.Verdict, error) {
	verdict, err := c.moderator.Moderate(ctx, image)
	if err != nil {
		return nil, err
	}
	return &biz.Verdict{Accepted: verdict.Accepted, Reason: verdict.Reason}, nil
}

func parseLikelihood(s string) vision.Likelihood {
	switch strings.ToUpper(s) {
	case "VERY_UNLIKELY":
		return vision.LikelihoodVeryUnlikely
	case "UNLIKELY":
		return vision.LikelihoodUnlikely
	case "POSSIBLE":
		return vision.LikelihoodPossible
	case "LIKELY":
		return vision.LikelihoodLikely
	case "VERY_LIKELY":
		return vision.LikelihoodVeryLikely
	default:
		return vision.LikelihoodUnknown
	}
}
