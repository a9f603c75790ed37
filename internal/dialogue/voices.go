package dialogue

import (
	"strings"

	"github.com/voicegate/voicegate/internal/speech"
)

// VoiceRule maps reply keywords to a voice profile.
type VoiceRule struct {
	Keywords []string
	Profile  speech.VoiceProfile
}

// VoiceSelector picks the voice profile for a reply by scanning an
// ordered rule list. The first rule with a matching keyword wins, so
// earlier rules take precedence over later ones.
type VoiceSelector struct {
	rules []VoiceRule
}

// NewVoiceSelector builds a selector over the given ordered rules.
func NewVoiceSelector(rules []VoiceRule) *VoiceSelector {
	return &VoiceSelector{rules: rules}
}

// DefaultVoiceRules is the shipped rule order: empathy outranks
// guidance, which outranks technical vocabulary.
func DefaultVoiceRules() []VoiceRule {
	return []VoiceRule{
		{Keywords: []string{"sorry", "apologize", "understand"}, Profile: speech.ProfileEmpathetic},
		{Keywords: []string{"let's", "try", "check", "restart"}, Profile: speech.ProfileHelping},
		{Keywords: []string{"driver", "system", "update", "windows"}, Profile: speech.ProfileTechnical},
	}
}

// Select returns the profile for reply, or the default profile when no
// rule matches.
func (v *VoiceSelector) Select(reply string) speech.VoiceProfile {
	reply = strings.ToLower(reply)
	for _, rule := range v.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(reply, kw) {
				return rule.Profile
			}
		}
	}
	return speech.ProfileDefault
}
