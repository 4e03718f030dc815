package domain

// NicheKeyUnclassified marks a profile synthesized outside the curated set.
const NicheKeyUnclassified = "unclassified"

// NicheProfile is the static visual configuration attached to a business
// category. Scene and Elements are filled for one-off dynamic profiles; the
// curated table only sets the first four fields.
type NicheProfile struct {
	Key          string   `json:"key"`
	VisualStyle  string   `json:"visual_style"`
	ColorPalette []string `json:"color_palette"`
	MoodKeywords []string `json:"mood_keywords"`
	Scene        string   `json:"scene,omitempty"`
	Elements     []string `json:"elements,omitempty"`
}

// Dynamic reports whether this profile was synthesized for a single request.
func (p NicheProfile) Dynamic() bool {
	return p.Key == NicheKeyUnclassified
}
