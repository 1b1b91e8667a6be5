package config

import (
	"fmt"
	"strings"
)

// Route presets
const (
	PresetSafeguard = "safeguard"
	PresetPlain     = "plain"
	PresetDedicated = "dedicated"
)

// AnyStage matches every stage not listed explicitly
const AnyStage = "*"

// Route decides where backups of one deployment stage go.
// The bucket suffix is appended to the bucket name from the provider document,
// the key suffix to the namespace that prefixes every object key.
type Route struct {
	Stage        string `mapstructure:"stage" json:"stage"`
	BucketSuffix string `mapstructure:"bucket_suffix" json:"bucket_suffix"`
	KeySuffix    string `mapstructure:"key_suffix" json:"key_suffix"`
	// Inverted marks a route whose suffix is labeled for a different stage than
	// the one it serves. Such routes are reported on every run.
	Inverted bool `mapstructure:"inverted" json:"inverted"`
}

// RouteTable is an ordered list of routes; exact stage matches win over AnyStage
type RouteTable []Route

var presets = map[string]RouteTable{
	// Production backups land in the "-dev" bucket and keys, everything else in "-prod".
	// Both routes are flagged as inverted.
	PresetSafeguard: {
		{Stage: "production", BucketSuffix: "-dev", KeySuffix: "-dev", Inverted: true},
		{Stage: AnyStage, BucketSuffix: "-prod", KeySuffix: "-prod", Inverted: true},
	},
	PresetPlain: {
		{Stage: AnyStage},
	},
	PresetDedicated: {
		{Stage: AnyStage, BucketSuffix: "-dbb", KeySuffix: "-db"},
	},
}

// Preset returns a copy of a built-in route table
func Preset(name string) (RouteTable, error) {
	table, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown routing preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	out := make(RouteTable, len(table))
	copy(out, table)
	return out, nil
}

// PresetNames lists the built-in presets
func PresetNames() []string {
	return []string{PresetSafeguard, PresetPlain, PresetDedicated}
}

// Validate checks the table is usable
func (t RouteTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("route table is empty")
	}

	seen := make(map[string]bool, len(t))
	for i, route := range t {
		stage := strings.ToLower(strings.TrimSpace(route.Stage))
		if stage == "" {
			return fmt.Errorf("route %d has no stage", i)
		}
		if strings.ContainsAny(route.KeySuffix, "/") {
			return fmt.Errorf("route %q: key suffix must not contain '/'", route.Stage)
		}
		if seen[stage] {
			return fmt.Errorf("duplicate route for stage %q", route.Stage)
		}
		seen[stage] = true
	}

	return nil
}

// Match returns the route serving stage. Stage comparison is case-insensitive.
func (t RouteTable) Match(stage string) (Route, error) {
	stage = strings.TrimSpace(stage)

	for _, route := range t {
		if route.Stage != AnyStage && strings.EqualFold(route.Stage, stage) {
			return route, nil
		}
	}

	for _, route := range t {
		if route.Stage == AnyStage {
			return route, nil
		}
	}

	return Route{}, fmt.Errorf("no route for stage %q", stage)
}

// BucketFor derives the bucket name from the provider's bucket base
func (r Route) BucketFor(base string) string {
	return base + r.BucketSuffix
}

// KeyPrefixFor derives the object key prefix from the namespace
func (r Route) KeyPrefixFor(namespace string) string {
	return namespace + r.KeySuffix
}
