// Package niche classifies business descriptions into visual profiles used
// for prompt composition. Classification tries curated regex rules first, then
// a constrained LLM pick, then synthesizes a one-off dynamic profile. It never
// fails: every description resolves to some usable profile.
package niche

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
	"server/internal/infra"
)

// KeyClassifier is the LLM fallback. Implementations must pick one of keys or
// return an error; any other answer is treated as unclassified.
type KeyClassifier interface {
	ClassifyBusiness(ctx context.Context, description string, keys []string) (string, error)
}

type compiledRule struct {
	key string
	re  *regexp.Regexp
}

// Classifier resolves business descriptions to niche profiles.
type Classifier struct {
	rules    []compiledRule
	profiles map[string]domain.NicheProfile
	llm      KeyClassifier
	logger   infra.Logger
	titler   cases.Caser
}

// NewClassifier compiles the rule table up front so a malformed pattern fails
// at boot instead of inside a job. llm may be nil; the classifier then goes
// straight from regex miss to dynamic synthesis.
func NewClassifier(logger infra.Logger, rules []Rule, profiles map[string]domain.NicheProfile, llm KeyClassifier) (*Classifier, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("niche: rule table is empty")
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("niche: rule %q: %w", r.Key, err)
		}
		if _, ok := profiles[r.Key]; !ok {
			return nil, fmt.Errorf("niche: rule %q has no profile", r.Key)
		}
		compiled = append(compiled, compiledRule{key: r.Key, re: re})
	}
	return &Classifier{
		rules:    compiled,
		profiles: profiles,
		llm:      llm,
		logger:   logger,
		titler:   cases.Title(language.BrazilianPortuguese),
	}, nil
}

// Keys returns the curated niche keys in rule order.
func (c *Classifier) Keys() []string {
	keys := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		keys = append(keys, r.key)
	}
	return keys
}

// Classify resolves the profile for a business description. The regex pass is
// first-match over the priority-ordered table; the LLM is consulted only when
// no rule fires, and its answer is discarded unless it names a curated key.
func (c *Classifier) Classify(ctx context.Context, profile domain.BusinessProfile) domain.NicheProfile {
	description := profile.DescriptionText()
	for _, rule := range c.rules {
		if rule.re.MatchString(description) {
			c.logger.Debug().
				Str("niche", rule.key).
				Msg("niche: classified by rule")
			return c.profiles[rule.key]
		}
	}

	if c.llm != nil {
		key, err := c.llm.ClassifyBusiness(ctx, description, c.Keys())
		if err != nil {
			c.logger.Warn().Err(err).Msg("niche: llm classification failed, synthesizing dynamic profile")
		} else if p, ok := c.profiles[key]; ok {
			c.logger.Debug().Str("niche", key).Msg("niche: classified by llm")
			return p
		} else {
			c.logger.Warn().
				Str("answer", key).
				Msg("niche: llm answered outside curated keys, synthesizing dynamic profile")
		}
	}

	return c.synthesize(profile)
}

// synthesize builds a one-off profile from the literal business input. It is
// local-only and cannot fail, which keeps the pipeline alive for businesses
// the curated table does not know.
func (c *Classifier) synthesize(profile domain.BusinessProfile) domain.NicheProfile {
	subject := strings.TrimSpace(profile.OfferText)
	if subject == "" {
		subject = strings.TrimSpace(profile.CompanyName)
	}
	scene := "inviting storefront of a local business"
	if subject != "" {
		scene = fmt.Sprintf("professional scene showcasing %s", c.titler.String(subject))
	}
	elements := make([]string, 0, 2)
	if name := strings.TrimSpace(profile.CompanyName); name != "" {
		elements = append(elements, fmt.Sprintf("signage reading %q", name))
	}
	if style := strings.TrimSpace(profile.Style); style != "" {
		elements = append(elements, style+" styling")
	}
	return domain.NicheProfile{
		Key:          domain.NicheKeyUnclassified,
		VisualStyle:  "clean commercial photography with natural light",
		ColorPalette: []string{"white", "warm neutral", "accent blue"},
		MoodKeywords: []string{"professional", "welcoming", "trustworthy"},
		Scene:        scene,
		Elements:     elements,
	}
}
