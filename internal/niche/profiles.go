package niche

import "server/internal/domain"

// Rule binds a niche key to the pattern that selects it. Rules are evaluated
// in order and the first match wins, so specific categories must precede
// broader ones (e.g. car wash before generic delivery or automotive).
type Rule struct {
	Key     string
	Pattern string
}

// DefaultRules is the curated priority-ordered rule table for Brazilian
// small-business descriptions. Ordering is deliberate, not alphabetical.
var DefaultRules = []Rule{
	// No trailing \b: RE2 word boundaries are ASCII-only and "í" is not a
	// word character there.
	{Key: "acai", Pattern: `(?i)\ba[cç]a[ií]`},
	{Key: "hamburgueria", Pattern: `(?i)hamb[úu]rguer|hamburgueria|burger|lanche(s|ria)?\b`},
	{Key: "pizzaria", Pattern: `(?i)pizza(ria)?`},
	{Key: "lavagem_carro", Pattern: `(?i)lavagem de carros?|lava[- ]?(jato|r[áa]pido)|est[ée]tica automotiva|car ?wash`},
	{Key: "barbearia", Pattern: `(?i)barbearia|barbeiro|barber`},
	// "estética automotiva" is caught by lavagem_carro above, so the bare
	// "estética" here only sees the beauty sense.
	{Key: "salao_beleza", Pattern: `(?i)sal[ãa]o de beleza|manicure|cabeleireir[oa]|beleza|est[ée]tica`},
	{Key: "petshop", Pattern: `(?i)pet ?shop|banho e tosa|veterin[áa]ri[oa]`},
	{Key: "academia", Pattern: `(?i)academia|personal trainer|crossfit|muscula[çc][ãa]o`},
	{Key: "moda", Pattern: `(?i)moda|roupas?|boutique|vestu[áa]rio|cal[çc]ados?`},
	{Key: "mercado", Pattern: `(?i)mercado|mercearia|hortifr[úu]ti|padaria`},
	{Key: "restaurante", Pattern: `(?i)restaurante|marmita(s|ria)?|comida caseira|self[- ]?service`},
	// Broad buckets stay last so they never shadow the specific ones above.
	{Key: "delivery", Pattern: `(?i)entrega(s)?\b|delivery|motoboy`},
	{Key: "automotivo", Pattern: `(?i)autom[óo]vel|automotiv[oa]|oficina|mec[âa]nica|carros?\b`},
}

// DefaultProfiles maps every rule key onto its static visual configuration.
var DefaultProfiles = map[string]domain.NicheProfile{
	"acai": {
		Key:          "acai",
		VisualStyle:  "vibrant street-food photography with tropical energy",
		ColorPalette: []string{"deep purple", "magenta", "leaf green", "cream"},
		MoodKeywords: []string{"refreshing", "energetic", "tropical", "indulgent"},
	},
	"hamburgueria": {
		Key:          "hamburgueria",
		VisualStyle:  "dark rustic food photography with dramatic lighting",
		ColorPalette: []string{"charcoal", "golden yellow", "tomato red", "toasted brown"},
		MoodKeywords: []string{"juicy", "smoky", "craft", "bold"},
	},
	"pizzaria": {
		Key:          "pizzaria",
		VisualStyle:  "warm trattoria photography with wood-fired texture",
		ColorPalette: []string{"brick red", "mozzarella white", "basil green", "amber"},
		MoodKeywords: []string{"artisanal", "warm", "family", "appetizing"},
	},
	"lavagem_carro": {
		Key:          "lavagem_carro",
		VisualStyle:  "glossy automotive photography with water droplets and shine",
		ColorPalette: []string{"electric blue", "white foam", "chrome silver", "black"},
		MoodKeywords: []string{"spotless", "professional", "fast", "gleaming"},
	},
	"barbearia": {
		Key:          "barbearia",
		VisualStyle:  "vintage barbershop aesthetic with moody tones",
		ColorPalette: []string{"matte black", "brass gold", "barber-pole red", "cream"},
		MoodKeywords: []string{"classic", "sharp", "masculine", "trusted"},
	},
	"salao_beleza": {
		Key:          "salao_beleza",
		VisualStyle:  "soft glam studio photography with elegant highlights",
		ColorPalette: []string{"rose gold", "blush pink", "pearl white", "champagne"},
		MoodKeywords: []string{"elegant", "radiant", "pampering", "modern"},
	},
	"petshop": {
		Key:          "petshop",
		VisualStyle:  "bright playful photography with happy pets",
		ColorPalette: []string{"sky blue", "sunny yellow", "grass green", "white"},
		MoodKeywords: []string{"friendly", "caring", "playful", "clean"},
	},
	"academia": {
		Key:          "academia",
		VisualStyle:  "high-contrast fitness photography with dynamic motion",
		ColorPalette: []string{"jet black", "neon green", "steel gray", "white"},
		MoodKeywords: []string{"strong", "disciplined", "energizing", "modern"},
	},
	"moda": {
		Key:          "moda",
		VisualStyle:  "editorial fashion photography with minimalist styling",
		ColorPalette: []string{"off-white", "terracotta", "sand", "black"},
		MoodKeywords: []string{"trendy", "curated", "confident", "chic"},
	},
	"mercado": {
		Key:          "mercado",
		VisualStyle:  "fresh market photography with abundant produce",
		ColorPalette: []string{"fresh green", "tomato red", "wood brown", "white"},
		MoodKeywords: []string{"fresh", "local", "affordable", "trustworthy"},
	},
	"restaurante": {
		Key:          "restaurante",
		VisualStyle:  "cozy restaurant photography with plated dishes",
		ColorPalette: []string{"warm orange", "deep brown", "herb green", "cream"},
		MoodKeywords: []string{"homemade", "generous", "welcoming", "savory"},
	},
	"delivery": {
		Key:          "delivery",
		VisualStyle:  "urban motion photography with delivery energy",
		ColorPalette: []string{"traffic orange", "asphalt gray", "white", "red"},
		MoodKeywords: []string{"fast", "reliable", "convenient", "urban"},
	},
	"automotivo": {
		Key:          "automotivo",
		VisualStyle:  "industrial garage photography with metallic detail",
		ColorPalette: []string{"gunmetal", "safety orange", "steel blue", "black"},
		MoodKeywords: []string{"skilled", "robust", "precise", "dependable"},
	},
}
