package moderator

import (
	"context"
	"strings"
	"time"

	"restroom/internal/pkg/vision"

	"github.com/go-kratos/kratos/v2/log"
)

// PhotoVerdict is the outcome of moderating a single photo.
type PhotoVerdict struct {
	Accepted bool
	Reason   string // first failing check, empty on accept
	Labels   []string
}

// Reject reasons, one per check.
const (
	ReasonNotRestroom   = "not a restroom"
	ReasonUnsafeContent = "unsafe content"
	ReasonTextOverlay   = "excessive text overlay"
	ReasonLowQuality    = "low image quality"
)

// PhotoModeratorConfig holds thresholds for the four photo checks.
type PhotoModeratorConfig struct {
	// Subject-relevance: at least one label must match with a minimum score.
	SubjectLabels   []string
	SubjectMinScore float64
	// Safety: any category at or above this likelihood is a reject.
	SafetyThreshold vision.Likelihood
	// Overlay: detected text longer than this is treated as an overlay.
	MaxTextRunes int
	// Quality: fewer distinguishable dominant colors than this is a reject.
	MinDominantColors int
	Timeout           time.Duration
}

// DefaultPhotoModeratorConfig returns default configuration.
func DefaultPhotoModeratorConfig() PhotoModeratorConfig {
	return PhotoModeratorConfig{
		SubjectLabels: []string{
			"toilet", "restroom", "bathroom", "lavatory", "urinal",
			"plumbing fixture", "bidet", "sink", "tile",
		},
		SubjectMinScore:   0.6,
		SafetyThreshold:   vision.LikelihoodLikely,
		MaxTextRunes:      60,
		MinDominantColors: 3,
		Timeout:           10 * time.Second,
	}
}

// Annotator is the capability consumed by the PhotoModerator.
type Annotator interface {
	Annotate(ctx context.Context, imageData []byte) (*vision.Annotation, error)
}

// PhotoModerator decides whether an uploaded photo is publishable. Checks run
// in a fixed order (subject, safety, overlay, quality) and the first failing
// check's reason wins.
type PhotoModerator struct {
	config    PhotoModeratorConfig
	annotator Annotator
	log       *log.Helper
}

// NewPhotoModerator creates a new PhotoModerator.
func NewPhotoModerator(config PhotoModeratorConfig, annotator Annotator, logger log.Logger) *PhotoModerator {
	return &PhotoModerator{
		config:    config,
		annotator: annotator,
		log:       log.NewHelper(logger),
	}
}

// Moderate classifies normalized image bytes. A transport or backend failure
// is returned as an error; callers decide the failure policy.
func (m *PhotoModerator) Moderate(ctx context.Context, imageData []byte) (*PhotoVerdict, error) {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	ann, err := m.annotator.Annotate(ctx, imageData)
	if err != nil {
		return nil, err
	}

	verdict := &PhotoVerdict{Labels: labelNames(ann.Labels)}

	if !m.subjectMatches(ann.Labels) {
		verdict.Reason = ReasonNotRestroom
		return verdict, nil
	}
	if reason := m.safetyReason(ann.SafeSearch); reason != "" {
		verdict.Reason = reason
		return verdict, nil
	}
	if m.hasTextOverlay(ann.Text) {
		verdict.Reason = ReasonTextOverlay
		return verdict, nil
	}
	if m.lowQuality(ann.DominantColors) {
		verdict.Reason = ReasonLowQuality
		return verdict, nil
	}

	verdict.Accepted = true
	return verdict, nil
}

func (m *PhotoModerator) subjectMatches(labels []vision.Label) bool {
	for _, label := range labels {
		if label.Score < m.config.SubjectMinScore {
			continue
		}
		desc := strings.ToLower(label.Description)
		for _, subject := range m.config.SubjectLabels {
			if strings.Contains(desc, subject) {
				return true
			}
		}
	}
	return false
}

func (m *PhotoModerator) safetyReason(ss vision.SafeSearch) string {
	categories := []struct {
		name       string
		likelihood vision.Likelihood
	}{
		{"adult", ss.Adult},
		{"violence", ss.Violence},
		{"racy", ss.Racy},
	}
	for _, c := range categories {
		if c.likelihood >= m.config.SafetyThreshold {
			return ReasonUnsafeContent + ": " + c.name
		}
	}
	return ""
}

// hasTextOverlay is a best-effort heuristic; an empty text annotation (signal
// unavailable) never rejects.
func (m *PhotoModerator) hasTextOverlay(text string) bool {
	if m.config.MaxTextRunes <= 0 {
		return false
	}
	return len([]rune(strings.TrimSpace(text))) > m.config.MaxTextRunes
}

func (m *PhotoModerator) lowQuality(colors []vision.DominantColor) bool {
	if m.config.MinDominantColors <= 0 || colors == nil {
		return false
	}
	distinguishable := 0
	for _, c := range colors {
		if c.PixelFraction > 0.01 {
			distinguishable++
		}
	}
	return distinguishable < m.config.MinDominantColors
}

func labelNames(labels []vision.Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Description
	}
	return names
}
