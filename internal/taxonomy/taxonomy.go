// Package taxonomy holds the parapsychology framework table and the rules
// for resolving it into story type filters.
//
// Three research frameworks classify story types into categories: the
// Cardiff Anomalous Perceptions Scale, the sleep paralysis literature, and
// hypnagogic/hypnopompic phenomenology. The table is a process-wide
// constant and must never be mutated at runtime.
package taxonomy

import "sort"

// Framework groups story types into named categories.
type Framework struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Categories  map[string][]string `json:"categories"`
}

// Frameworks is the canonical framework table keyed by framework key.
var Frameworks = map[string]Framework{
	"caps": {
		Name:        "Cardiff Anomalous Perceptions Scale",
		Description: "Psychological framework for evaluating anomalous perceptions",
		Categories: map[string][]string{
			"temporal_lobe":       {"precognition", "time_slip", "deja_vu"},
			"clinical_perceptual": {"shadow_person", "ghost", "doppelganger"},
			"chemosensory":        {"phantom_smell", "other"},
			"sleep_related":       {"sleep_paralysis", "obe", "nde"},
			"external_agent":      {"alien_encounter", "possession", "haunting"},
		},
	},
	"sleep_paralysis": {
		Name:        "Sleep Paralysis Framework",
		Description: "Categories based on sleep paralysis research",
		Categories: map[string][]string{
			"intruder":         {"shadow_person", "ghost", "alien_encounter"},
			"incubus":          {"sleep_paralysis", "possession"},
			"vestibular_motor": {"obe", "nde", "time_slip"},
		},
	},
	"hypnagogic": {
		Name:        "Hypnagogic/Hypnopompic Framework",
		Description: "Experiences during sleep-wake transitions",
		Categories: map[string][]string{
			"visual":         {"ghost", "shadow_person", "doppelganger", "ufo"},
			"auditory":       {"ghost", "haunting"},
			"tactile":        {"sleep_paralysis", "possession"},
			"proprioceptive": {"obe", "time_slip"},
		},
	},
}

// StoryTypes is the known story type vocabulary.
var StoryTypes = []string{
	"ghost", "shadow_person", "cryptid", "ufo", "alien_encounter",
	"haunting", "poltergeist", "precognition", "nde", "obe",
	"time_slip", "doppelganger", "sleep_paralysis", "possession", "other",
}

// DefaultTypeColor is used for story types without an assigned color.
const DefaultTypeColor = "#95a5a6"

// TypeColors maps story types to display colors for the projection view.
var TypeColors = map[string]string{
	"ghost":           "#9b59b6",
	"shadow_person":   "#2c3e50",
	"cryptid":         "#27ae60",
	"ufo":             "#3498db",
	"alien_encounter": "#1abc9c",
	"haunting":        "#8e44ad",
	"poltergeist":     "#e74c3c",
	"precognition":    "#f39c12",
	"nde":             "#e67e22",
	"obe":             "#16a085",
	"time_slip":       "#2980b9",
	"doppelganger":    "#c0392b",
	"sleep_paralysis": "#7f8c8d",
	"possession":      "#d35400",
	"other":           "#95a5a6",
}

// ColorForType returns the display color for a story type.
func ColorForType(storyType string) string {
	if c, ok := TypeColors[storyType]; ok {
		return c
	}
	return DefaultTypeColor
}

// ResolveTypeFilter turns framework/category/explicit-type parameters into
// a concrete story type filter.
//
// Resolution order: a known framework wins over explicit types. Within a
// known framework, a known category selects that category's types and
// anything else (including no category) selects the union of all the
// framework's categories. An unknown framework falls through to the
// explicit list, used verbatim. An empty explicit list means no filter,
// reported as nil. The result is deduplicated and sorted so identical
// inputs always produce identical SQL.
func ResolveTypeFilter(framework, category string, explicit []string) []string {
	if fw, ok := Frameworks[framework]; ok {
		if ts, ok := fw.Categories[category]; ok {
			return dedupSorted(ts)
		}
		var all []string
		for _, ts := range fw.Categories {
			all = append(all, ts...)
		}
		return dedupSorted(all)
	}
	if len(explicit) > 0 {
		return dedupSorted(explicit)
	}
	return nil
}

// FrameworksForType returns every framework category that includes the
// given story type, keyed by framework key.
func FrameworksForType(storyType string) map[string][]string {
	result := make(map[string][]string)
	for key, fw := range Frameworks {
		var matches []string
		for category, ts := range fw.Categories {
			for _, t := range ts {
				if t == storyType {
					matches = append(matches, category)
					break
				}
			}
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			result[key] = matches
		}
	}
	return result
}

func dedupSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
