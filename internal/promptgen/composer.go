// Package promptgen renders the final prompt pair sent to the image
// providers. Literal business fields pass through verbatim; only free-form
// text is sanitized.
package promptgen

import (
	"fmt"
	"strings"

	"server/internal/domain"
)

// sanitizeCutset lists the glyph-bait characters stripped from free text.
// Providers tend to render these as garbled overlay symbols. Digits, commas,
// hyphens, slashes and parentheses stay because phone numbers and addresses
// need them.
const sanitizeCutset = "@#$%&*~^"

var languageNames = map[string]string{
	"pt": "Brazilian Portuguese",
	"id": "Indonesian",
	"en": "English",
}

// Input collects everything one compose call needs. Attempt is 1-based;
// attempts past the first get text-legibility reinforcement appended.
type Input struct {
	Profile     domain.BusinessProfile
	Niche       domain.NicheProfile
	AspectRatio string
	Language    string
	Attempt     int
}

// Prompt is the rendered positive/negative pair.
type Prompt struct {
	Positive string
	Negative string
}

// Sanitize removes glyph-bait symbols from free-form text while leaving
// everything else, including digits and punctuation, untouched.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(sanitizeCutset, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Compose renders the prompt for one generation attempt.
func Compose(in Input) Prompt {
	lang := languageNames[in.Language]
	if lang == "" {
		lang = languageNames["pt"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Professional marketing flyer for a small business, %s.\n", in.Niche.VisualStyle)
	if in.Niche.Scene != "" {
		fmt.Fprintf(&b, "Scene: %s.\n", in.Niche.Scene)
	}
	if len(in.Niche.ColorPalette) > 0 {
		fmt.Fprintf(&b, "Color palette: %s.\n", strings.Join(in.Niche.ColorPalette, ", "))
	}
	if len(in.Niche.MoodKeywords) > 0 {
		fmt.Fprintf(&b, "Mood: %s.\n", strings.Join(in.Niche.MoodKeywords, ", "))
	}
	for _, e := range in.Niche.Elements {
		fmt.Fprintf(&b, "Include %s.\n", e)
	}
	if style := strings.TrimSpace(in.Profile.Style); style != "" {
		fmt.Fprintf(&b, "Overall style direction: %s.\n", Sanitize(style))
	}

	if offer := Sanitize(in.Profile.OfferText); offer != "" {
		fmt.Fprintf(&b, "The flyer advertises: %s.\n", offer)
	}
	if notes := Sanitize(in.Profile.Notes); notes != "" {
		fmt.Fprintf(&b, "Additional context: %s.\n", notes)
	}

	b.WriteString("The image must display the following text exactly as written, with no changes:\n")
	fmt.Fprintf(&b, "- Business name: %q\n", in.Profile.CompanyName)
	if v := strings.TrimSpace(in.Profile.Phone); v != "" {
		fmt.Fprintf(&b, "- Phone: %q\n", v)
	}
	if v := strings.TrimSpace(in.Profile.WhatsApp); v != "" {
		fmt.Fprintf(&b, "- WhatsApp: %q\n", v)
	}
	if v := strings.TrimSpace(in.Profile.Instagram); v != "" {
		fmt.Fprintf(&b, "- Instagram: %q\n", v)
	}
	if v := strings.TrimSpace(in.Profile.Address); v != "" {
		fmt.Fprintf(&b, "- Address: %q\n", v)
	}

	fmt.Fprintf(&b, "All text rendered in %s.\n", lang)
	b.WriteString("Do not invent any text, phone number, price or name not listed above. ")
	b.WriteString("Do not add third-party logos, brand marks or watermarks.")
	if in.AspectRatio != "" {
		fmt.Fprintf(&b, "\nComposition framed for a %s aspect ratio.", in.AspectRatio)
	}

	if in.Attempt >= 2 {
		b.WriteString("\nRender all text noticeably larger, sharper and with stronger contrast against the background.")
	}

	return Prompt{
		Positive: b.String(),
		Negative: "misspelled words, garbled text, gibberish characters, invented phone numbers, " +
			"extra logos, watermarks, distorted letters, low contrast text, blurry typography",
	}
}
