package instance

import "github.com/jg-phare/mcslauncherd/internal/mcversion"

// Registry is a named group of version-bounded constructors, mirroring the
// daemon's three classification registries (core, archive, script).
type Registry struct {
	name    string
	entries []factoryEntry
}

type factoryEntry struct {
	tag        string
	minVersion string
	maxVersion string
	strategy   Strategy
}

// NewRegistry creates an empty, named Registry.
func NewRegistry(name string) *Registry {
	return &Registry{name: name}
}

// Register adds a (tag, version bounds) -> strategy mapping. An empty bound
// is unconstrained on that side.
func (r *Registry) Register(tag, minVersion, maxVersion string, strategy Strategy) {
	r.entries = append(r.entries, factoryEntry{tag, minVersion, maxVersion, strategy})
}

// Resolve finds the strategy for tag/version, or ok=false if none matches.
// A release version matches the first tag-equal entry whose bounds contain
// it; a snapshot version matches the first tag-equal entry with no bounds;
// an empty version matches the first tag-equal entry.
func (r *Registry) Resolve(tag, version string) (Strategy, bool) {
	for _, e := range r.entries {
		if e.tag != tag {
			continue
		}
		switch {
		case version == "":
			return e.strategy, true
		case mcversion.IsRelease(version):
			if mcversion.InBounds(version, e.minVersion, e.maxVersion) {
				return e.strategy, true
			}
		default:
			if e.minVersion == "" && e.maxVersion == "" {
				return e.strategy, true
			}
		}
	}
	return nil, false
}

// Factory dispatches across the daemon's core/archive/script registries.
type Factory struct {
	Core    *Registry
	Archive *Registry
	Script  *Registry
}

// minecraftTags are the classification tags driven by the Minecraft
// strategy; everything else is treated as a generic program.
var minecraftTags = []string{"minecraft", "fabric", "forge", "neoforge", "cleanroom", "quilt"}

// NewFactory builds the default factory with the built-in strategies
// registered against the "core" registry.
func NewFactory() *Factory {
	core := NewRegistry("core")
	core.Register("universal", "", "", Universal)
	core.Register("none", "", "", Universal)
	for _, tag := range minecraftTags {
		core.Register(tag, "", "", Minecraft)
	}

	return &Factory{
		Core:    core,
		Archive: NewRegistry("archive"),
		Script:  NewRegistry("script"),
	}
}

// Resolve tries each registry in turn: core, then archive, then script.
func (f *Factory) Resolve(tag, version string) (Strategy, bool) {
	for _, reg := range []*Registry{f.Core, f.Archive, f.Script} {
		if s, ok := reg.Resolve(tag, version); ok {
			return s, true
		}
	}
	return nil, false
}

// ResolveSource resolves against one named registry ("core", "archive",
// "script"); any other source falls back to the full search order.
func (f *Factory) ResolveSource(source, tag, version string) (Strategy, bool) {
	switch source {
	case "core":
		return f.Core.Resolve(tag, version)
	case "archive":
		return f.Archive.Resolve(tag, version)
	case "script":
		return f.Script.Resolve(tag, version)
	default:
		return f.Resolve(tag, version)
	}
}
