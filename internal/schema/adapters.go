package schema

import (
	"encoding/json"
	"strconv"
	"strings"
)

// adapter upgrades a tree from one revision to the next. Adapters mutate the
// tree in place and are no-ops on data already past their revision.
type adapter func(tree map[string]any)

// chain[r] upgrades revision r to r+1.
var chain = map[Revision]adapter{
	RevSentenceCase:    func(t map[string]any) { renameKeys(t, sentenceToSnake) },
	RevKebabCase:       func(t map[string]any) { renameKeys(t, kebabToSnake) },
	RevNamedContainers: upgradeNamedContainers,
	RevNestedProblem:   flattenProblem,
	RevAliasedKeys:     resolveAliases,
}

// Upgrade runs every adapter from rev up to the canonical revision.
func Upgrade(tree map[string]any, rev Revision) {
	for r := rev; r < RevCanonical; r++ {
		if a, ok := chain[r]; ok {
			a(tree)
		}
	}
}

func sentenceToSnake(k string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(k), " ", "_"))
}

func kebabToSnake(k string) string {
	return strings.ReplaceAll(k, "-", "_")
}

func renameKeys(v any, fn func(string) string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			renameKeys(child, fn)
			nk := fn(k)
			if nk == k {
				continue
			}
			delete(t, k)
			if _, clash := t[nk]; !clash {
				t[nk] = child
			}
		}
	case []any:
		for _, child := range t {
			renameKeys(child, fn)
		}
	}
}

// Legacy pagmo names that do not snake_case to the type suffix.
var legacyTypeNames = map[string]string{
	"nsga_ii": "nsga2",
	"nsgaii":  "nsga2",
}

func containerType(name string) string {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	if alias, ok := legacyTypeNames[n]; ok {
		n = alias
	}
	return "pagmo::" + n
}

func upgradeNamedContainers(tree map[string]any) {
	renameIn(tree, topLevelAliases)
	for _, key := range containerKeys {
		if c, ok := tree[key].(map[string]any); ok {
			nameToType(c)
		}
	}
	if arch, ok := tree["archipelago"].(map[string]any); ok {
		if topo, ok := arch["topology"].(map[string]any); ok {
			nameToType(topo)
		}
	}
	if algo, ok := tree["algorithm"].(map[string]any); ok {
		foldExtraInfo(algo)
	}
}

func nameToType(c map[string]any) {
	name, ok := c["name"].(string)
	if !ok {
		return
	}
	if _, typed := c["type"]; !typed {
		c["type"] = containerType(name)
	}
	delete(c, "name")
}

// foldExtraInfo moves "Key: value" lines (or an object) from extra_info into
// parameters without overwriting parameters already present.
func foldExtraInfo(c map[string]any) {
	extra, ok := c["extra_info"]
	if !ok {
		return
	}
	params, _ := c["parameters"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}
	switch e := extra.(type) {
	case string:
		for _, line := range strings.Split(e, "\n") {
			k, v, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			key := sentenceToSnake(k)
			if _, exists := params[key]; exists || key == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				params[key] = json.Number(v)
			} else {
				params[key] = v
			}
		}
	case map[string]any:
		for k, v := range e {
			if _, exists := params[k]; !exists {
				params[k] = v
			}
		}
	}
	c["parameters"] = params
	delete(c, "extra_info")
}

func flattenProblem(tree map[string]any) {
	params := problemParameters(tree)
	if params == nil {
		return
	}
	if wds, ok := params["wds"].(map[string]any); ok {
		for k, v := range wds {
			params["wds_"+k] = v
		}
		delete(params, "wds")
	}
	delete(params, "available_diameters")
}

var (
	topLevelAliases = map[string]string{
		"udp":      "problem",
		"uda":      "algorithm",
		"udi":      "island",
		"udrp":     "replacement_policy",
		"r_policy": "replacement_policy",
		"udsp":     "selection_policy",
		"s_policy": "selection_policy",
		"udt":      "topology",
	}
	containerAliases = map[string]string{
		"params": "parameters",
	}
	generationAliases = map[string]string{
		"fevals": "fitness_evaluations",
		"gevals": "gradient_evaluations",
		"hevals": "hessian_evaluations",
	}
	individualAliases = map[string]string{
		"dv": "decision_vector",
		"fv": "fitness_vector",
	}
	parameterAliases = map[string]string{
		"wds_inp":     "at_inp",
		"wds_udegs":   "at_subnets",
		"tank_costs":  "tank_options",
		"operations":  "pump_group_operations",
		"anytown_eps": "anytown_eps_inp",
	}
)

func renameIn(m map[string]any, aliases map[string]string) {
	for from, to := range aliases {
		v, ok := m[from]
		if !ok {
			continue
		}
		delete(m, from)
		if _, exists := m[to]; !exists {
			m[to] = v
		}
	}
}

func resolveAliases(tree map[string]any) {
	renameIn(tree, topLevelAliases)
	if arch, ok := tree["archipelago"].(map[string]any); ok {
		renameIn(arch, topLevelAliases)
		if topo, ok := arch["topology"].(map[string]any); ok {
			renameIn(topo, containerAliases)
		}
	}
	if islands, ok := tree["islands"]; ok {
		arch, _ := tree["archipelago"].(map[string]any)
		if arch == nil {
			arch = map[string]any{}
			tree["archipelago"] = arch
		}
		if _, exists := arch["islands"]; !exists {
			arch["islands"] = islands
		}
		delete(tree, "islands")
	}
	for _, key := range []string{"algorithm", "island", "replacement_policy", "selection_policy", "problem"} {
		if c, ok := tree[key].(map[string]any); ok {
			renameIn(c, containerAliases)
		}
	}
	if params := problemParameters(tree); params != nil {
		renameIn(params, parameterAliases)
	}
	if v, ok := tree["bemelib_version"]; ok {
		sw, _ := tree["software"].(map[string]any)
		if sw == nil {
			sw = map[string]any{}
			tree["software"] = sw
		}
		if _, exists := sw["bemelib_version"]; !exists {
			sw["bemelib_version"] = v
		}
		delete(tree, "bemelib_version")
	}
	gens, _ := tree["generations"].([]any)
	for _, g := range gens {
		gen, ok := g.(map[string]any)
		if !ok {
			continue
		}
		renameIn(gen, generationAliases)
		inds, _ := gen["individuals"].([]any)
		for _, i := range inds {
			if ind, ok := i.(map[string]any); ok {
				renameIn(ind, individualAliases)
			}
		}
	}
}
