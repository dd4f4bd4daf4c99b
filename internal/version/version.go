/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package version reports the version of the raterelay module the running binary was built from.
package version

import (
	"debug/buildinfo"
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const moduleName = "github.com/acronis/go-raterelay"

// PrometheusLabel is the name of the label carrying the version.
const PrometheusLabel = "raterelay_version"

const unknownVersion = "v0.0.0"

// AddPrometheusLabel returns a copy of labels with the version label added.
func AddPrometheusLabel(labels prometheus.Labels) prometheus.Labels {
	labelsCopy := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		labelsCopy[k] = v
	}
	labelsCopy[PrometheusLabel] = Get()
	return labelsCopy
}

var (
	version     string
	versionOnce sync.Once
)

// Get returns the module version, or v0.0.0 if it cannot be determined (e.g. a development build).
func Get() string {
	versionOnce.Do(func() {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			version = extractVersion(buildInfo, moduleName)
		}
		if version == "" {
			version = unknownVersion
		}
	})
	return version
}

// extractVersion looks the module up first as the main module, then among dependencies.
// The module name may carry a major version suffix ("/vX").
func extractVersion(buildInfo *buildinfo.BuildInfo, modName string) string {
	if buildInfo == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	if re.MatchString(buildInfo.Main.Path) && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}
	for _, dep := range buildInfo.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	return ""
}
