package buildcfg

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/evanw/esbuild/pkg/api"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"deno":    api.EngineDeno,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"hermes":  api.EngineHermes,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"rhino":   api.EngineRhino,
	"safari":  api.EngineSafari,
}

var esLevels = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"es2024": api.ES2024,
	"esnext": api.ESNext,
}

// enginePattern splits "safari11.1" into "safari" and "11.1".
var enginePattern = regexp.MustCompile(`^([a-z]+)([0-9][0-9.]*)$`)

// ParseTargets converts target identifiers into esbuild engines and an
// optional ECMAScript level. Identifiers are case-insensitive, and an
// ECMAScript level may repeat as long as it names the same edition. Engine
// versions must be valid (possibly partial) semantic versions.
func ParseTargets(targets []string) ([]api.Engine, api.Target, error) {
	var (
		engines  []api.Engine
		esTarget = api.DefaultTarget
		esSeen   string
	)

	for _, raw := range targets {
		id := strings.ToLower(strings.TrimSpace(raw))
		if id == "" {
			return nil, api.DefaultTarget, invalidf("empty target identifier")
		}

		if level, ok := esLevels[id]; ok {
			if esSeen != "" && level != esTarget {
				return nil, api.DefaultTarget, invalidf("conflicting ECMAScript targets %q and %q", esSeen, raw)
			}

			esSeen = raw
			esTarget = level

			continue
		}

		engine, err := parseEngine(id)
		if err != nil {
			return nil, api.DefaultTarget, err
		}

		engines = append(engines, engine)
	}

	return engines, esTarget, nil
}

func parseEngine(id string) (api.Engine, error) {
	m := enginePattern.FindStringSubmatch(id)
	if m == nil {
		return api.Engine{}, invalidf("unsupported target %q", id)
	}

	name, ok := engineNames[m[1]]
	if !ok {
		return api.Engine{}, invalidf("unsupported target %q: unknown engine %q", id, m[1])
	}

	if _, err := semver.NewVersion(m[2]); err != nil {
		return api.Engine{}, invalidf("unsupported target %q: malformed version %q", id, m[2])
	}

	return api.Engine{Name: name, Version: m[2]}, nil
}

// EngineNames returns the supported engine names, sorted.
func EngineNames() []string {
	return slices.Sorted(maps.Keys(engineNames))
}

// ESLevels returns the supported ECMAScript level names, sorted.
func ESLevels() []string {
	return slices.Sorted(maps.Keys(esLevels))
}
