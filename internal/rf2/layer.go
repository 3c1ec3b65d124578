package rf2

import "fmt"

// LayerKind is the role an archive plays in a conversion. Kinds are ordered by
// specificity: a later kind overrides an earlier one.
type LayerKind int

const (
	LayerSnapshot LayerKind = iota
	LayerExtension
	LayerDelta
)

func (k LayerKind) String() string {
	switch k {
	case LayerSnapshot:
		return "snapshot"
	case LayerExtension:
		return "extension"
	case LayerDelta:
		return "delta"
	default:
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
}

// Filter is the substring an entry's base name must contain to be read from this layer.
func (k LayerKind) Filter() string {
	if k == LayerDelta {
		return "Delta"
	}
	return "Snapshot"
}

// Layer is one supplied archive.
type Layer struct {
	Kind LayerKind
	Path string
}

// Layers is the ordered list of supplied archives, least specific first.
type Layers []Layer

// NewLayers builds the layer list. dependency is required; empty extension or delta paths
// mean the layer is absent.
func NewLayers(dependency, extension, delta string) (Layers, error) {
	if dependency == "" {
		return nil, fmt.Errorf("a dependency snapshot archive is required")
	}
	layers := Layers{{Kind: LayerSnapshot, Path: dependency}}
	if extension != "" {
		layers = append(layers, Layer{Kind: LayerExtension, Path: extension})
	}
	if delta != "" {
		layers = append(layers, Layer{Kind: LayerDelta, Path: delta})
	}
	return layers, nil
}

// Latest returns the kind of the most specific layer present.
func (l Layers) Latest() LayerKind {
	if len(l) == 0 {
		return LayerSnapshot
	}
	return l[len(l)-1].Kind
}

// Path returns the archive path of the given kind, or "" when absent.
func (l Layers) Path(kind LayerKind) string {
	for _, layer := range l {
		if layer.Kind == kind {
			return layer.Path
		}
	}
	return ""
}
