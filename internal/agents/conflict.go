package agents

import (
	"fmt"
	"regexp"

	"prodigy/internal/domain/counsel"
)

var (
	cliPattern = regexp.MustCompile(`(?i)\b(cli|command[- ]line|terminal)\b`)
	guiPattern = regexp.MustCompile(`(?i)\b(web ?(app|ui|interface)|gui|graphical|dashboard|streamlit)\b`)
)

// keywordRule fires when one specialist's summary matches left and the other's matches right.
type keywordRule struct {
	a, b        counsel.SpecialistKey
	left, right *regexp.Regexp
	describe    string
}

var keywordRules = []keywordRule{
	{counsel.SpecialistTech, counsel.SpecialistProduct, cliPattern, guiPattern,
		"tech proposes a command-line interface while product expects a graphical/web interface"},
	{counsel.SpecialistProduct, counsel.SpecialistTech, cliPattern, guiPattern,
		"product proposes a command-line interface while tech plans a graphical/web interface"},
}

// DetectConflict inspects the summaries for disagreement. Rules, first match wins:
// score spread above SpreadThreshold, keyword contradictions between fixed
// specialist pairs, then differing structured interface claims. Returns nil
// when nothing fires.
func DetectConflict(summaries counsel.Summaries) *counsel.ConflictSignal {
	if sig := spreadConflict(summaries); sig != nil {
		return sig
	}
	if sig := keywordConflict(summaries); sig != nil {
		return sig
	}
	return interfaceConflict(summaries)
}

func spreadConflict(summaries counsel.Summaries) *counsel.ConflictSignal {
	var lo, hi *counsel.Summary
	for _, key := range counsel.AllSpecialists() {
		s, ok := summaries[key]
		if !ok || s == nil {
			continue
		}
		if lo == nil || s.Score < lo.Score {
			lo = s
		}
		if hi == nil || s.Score > hi.Score {
			hi = s
		}
	}
	if lo == nil || hi.Score-lo.Score <= SpreadThreshold {
		return nil
	}
	return &counsel.ConflictSignal{
		Kind: counsel.ConflictScoreSpread,
		Description: fmt.Sprintf("%s scores %.1f but %s scores %.1f (spread %.1f)",
			hi.Specialist, hi.Score, lo.Specialist, lo.Score, hi.Score-lo.Score),
		Specialists: []counsel.SpecialistKey{hi.Specialist, lo.Specialist},
	}
}

func keywordConflict(summaries counsel.Summaries) *counsel.ConflictSignal {
	for _, rule := range keywordRules {
		a, okA := summaries[rule.a]
		b, okB := summaries[rule.b]
		if !okA || !okB || a == nil || b == nil {
			continue
		}
		if rule.left.MatchString(a.Summary) && rule.right.MatchString(b.Summary) {
			return &counsel.ConflictSignal{
				Kind:        counsel.ConflictKeyword,
				Description: rule.describe,
				Specialists: []counsel.SpecialistKey{rule.a, rule.b},
			}
		}
	}
	return nil
}

func interfaceConflict(summaries counsel.Summaries) *counsel.ConflictSignal {
	var first *counsel.Summary
	for _, key := range counsel.AllSpecialists() {
		s, ok := summaries[key]
		if !ok || s == nil || s.Interface == "" || s.Interface == "none" {
			continue
		}
		if first == nil {
			first = s
			continue
		}
		if s.Interface != first.Interface {
			return &counsel.ConflictSignal{
				Kind: counsel.ConflictInterfaceClaim,
				Description: fmt.Sprintf("%s recommends a %s interface but %s recommends %s",
					first.Specialist, first.Interface, s.Specialist, s.Interface),
				Specialists: []counsel.SpecialistKey{first.Specialist, s.Specialist},
			}
		}
	}
	return nil
}
