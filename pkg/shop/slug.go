package shop

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

const maxSlugAttempts = 1000

// Elisions split words: "d'été" gives "d-ete", not "dete".
var apostrophes = strings.NewReplacer("'", "-", "\u2019", "-")

type slugTakenFunc func(ctx context.Context, slug, excludeID string) (bool, error)

// Slugify normalizes a display name into a URL segment.
func Slugify(name string) string {
	return slug.MakeLang(apostrophes.Replace(name), "fr")
}

// UniqueSlug returns the slug of name, suffixed -2, -3, ... until taken
// reports it free. excludeID lets a row keep its own slug on update.
func UniqueSlug(ctx context.Context, name, excludeID string, taken slugTakenFunc) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", invalid("name", "Le nom doit contenir au moins une lettre ou un chiffre")
	}

	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := base
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}
		used, err := taken(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		if !used {
			return candidate, nil
		}
	}
	return "", conflict("Impossible de générer un identifiant unique pour %q", name)
}
