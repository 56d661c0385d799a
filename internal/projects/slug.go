package projects

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Aidin1998/crowdfund/pkg/models"
)

const (
	maxSlugBase  = 200
	fallbackSlug = "project"
)

// Slugify lower-cases title and joins its alphanumeric runs with hyphens.
func Slugify(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			if b.Len() >= maxSlugBase {
				break
			}
			continue
		}
		pendingHyphen = true
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// SuggestSlug returns the first free slug among base, base-2, base-3...
func (s *Service) SuggestSlug(ctx context.Context, title string) (*models.SlugSuggestion, error) {
	base := Slugify(title)

	var taken []string
	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &taken).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load slugs: %w", err)
	}

	used := make(map[string]struct{}, len(taken))
	for _, slug := range taken {
		used[slug] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return &models.SlugSuggestion{Slug: base, Available: true}, nil
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, ok := used[candidate]; !ok {
			return &models.SlugSuggestion{Slug: candidate, Available: false}, nil
		}
	}
}
