package schema

import (
	"strings"
	"unicode"
)

// Revision identifies an on-disk layout. Revisions are ordered: every adapter
// upgrades data from one revision to the next.
type Revision int

const (
	// RevSentenceCase: "Current time", "Fitness vector", "ID".
	RevSentenceCase Revision = iota
	// RevKebabCase: "fitness-vector", "replacement-policy", "bemelib-version".
	RevKebabCase
	// RevNamedContainers: pagmo containers carry "name" and an "extra_info" blob.
	RevNamedContainers
	// RevNestedProblem: problem parameters nested under "wds".
	RevNestedProblem
	// RevAliasedKeys: short or superseded key names ("dv", "fevals", "wds_udegs").
	RevAliasedKeys
	// RevCanonical is the current layout.
	RevCanonical
)

var revisionNames = map[Revision]string{
	RevSentenceCase:    "sentence-case",
	RevKebabCase:       "kebab-case",
	RevNamedContainers: "named-containers",
	RevNestedProblem:   "nested-problem",
	RevAliasedKeys:     "aliased-keys",
	RevCanonical:       "canonical",
}

func (r Revision) String() string {
	if s, ok := revisionNames[r]; ok {
		return s
	}
	return "unknown"
}

var containerKeys = []string{"algorithm", "island", "replacement_policy", "selection_policy"}

// Detect returns the oldest revision whose markers appear in tree.
func Detect(tree map[string]any) Revision {
	if anyKey(tree, isSentenceCase) {
		return RevSentenceCase
	}
	if anyKey(tree, func(k string) bool { return strings.Contains(k, "-") }) {
		return RevKebabCase
	}
	if hasNamedContainer(tree) {
		return RevNamedContainers
	}
	if hasNestedProblem(tree) {
		return RevNestedProblem
	}
	if hasAliasedKeys(tree) {
		return RevAliasedKeys
	}
	return RevCanonical
}

func isSentenceCase(k string) bool {
	if strings.Contains(k, " ") {
		return true
	}
	for _, r := range k {
		return unicode.IsUpper(r)
	}
	return false
}

func anyKey(v any, pred func(string) bool) bool {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if pred(k) || anyKey(child, pred) {
				return true
			}
		}
	case []any:
		for _, child := range t {
			if anyKey(child, pred) {
				return true
			}
		}
	}
	return false
}

func hasNamedContainer(tree map[string]any) bool {
	for _, key := range containerKeys {
		c, ok := tree[key].(map[string]any)
		if !ok {
			continue
		}
		if _, named := c["name"]; named {
			if _, typed := c["type"]; !typed {
				return true
			}
		}
	}
	return false
}

func problemParameters(tree map[string]any) map[string]any {
	problem, ok := tree["problem"].(map[string]any)
	if !ok {
		return nil
	}
	params, _ := problem["parameters"].(map[string]any)
	return params
}

func hasNestedProblem(tree map[string]any) bool {
	params := problemParameters(tree)
	if params == nil {
		return false
	}
	if _, ok := params["wds"].(map[string]any); ok {
		return true
	}
	_, ok := params["available_diameters"]
	return ok
}

func hasAliasedKeys(tree map[string]any) bool {
	for _, key := range []string{"bemelib_version", "islands"} {
		if _, ok := tree[key]; ok {
			return true
		}
	}
	for alias := range topLevelAliases {
		if _, ok := tree[alias]; ok {
			return true
		}
	}
	for alias := range parameterAliases {
		if _, ok := problemParameters(tree)[alias]; ok {
			return true
		}
	}
	gens, _ := tree["generations"].([]any)
	for _, g := range gens {
		gen, ok := g.(map[string]any)
		if !ok {
			continue
		}
		for alias := range generationAliases {
			if _, ok := gen[alias]; ok {
				return true
			}
		}
		inds, _ := gen["individuals"].([]any)
		for _, i := range inds {
			ind, ok := i.(map[string]any)
			if !ok {
				continue
			}
			for alias := range individualAliases {
				if _, ok := ind[alias]; ok {
					return true
				}
			}
		}
	}
	return false
}
