package buildcfg

import (
	"maps"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var loaderNames = map[string]api.Loader{
	"base64":     api.LoaderBase64,
	"binary":     api.LoaderBinary,
	"copy":       api.LoaderCopy,
	"css":        api.LoaderCSS,
	"dataurl":    api.LoaderDataURL,
	"default":    api.LoaderDefault,
	"empty":      api.LoaderEmpty,
	"file":       api.LoaderFile,
	"global-css": api.LoaderGlobalCSS,
	"js":         api.LoaderJS,
	"json":       api.LoaderJSON,
	"jsx":        api.LoaderJSX,
	"local-css":  api.LoaderLocalCSS,
	"text":       api.LoaderText,
	"ts":         api.LoaderTS,
	"tsx":        api.LoaderTSX,
}

// parseLoaders validates an extension to loader-name mapping. Extensions
// must start with a dot.
func parseLoaders(m map[string]string) (map[string]api.Loader, error) {
	if len(m) == 0 {
		return nil, nil
	}

	out := make(map[string]api.Loader, len(m))

	for ext, name := range m {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return nil, invalidf("loader extension %q must start with a dot", ext)
		}

		loader, ok := loaderNames[strings.ToLower(name)]
		if !ok {
			return nil, invalidf("unsupported loader %q for extension %q", name, ext)
		}

		out[ext] = loader
	}

	return out, nil
}

// LoaderNames returns the supported loader names, sorted.
func LoaderNames() []string {
	return slices.Sorted(maps.Keys(loaderNames))
}
