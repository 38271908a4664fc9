package artifact

import "fmt"

// Kind identifies one cached artifact of a split.
type Kind int

const (
	Texture Kind = iota
	Pattern
	Labels
	Histograms
	Vocabulary
)

// Kinds lists every kind in storage order.
var Kinds = []Kind{Texture, Pattern, Labels, Histograms, Vocabulary}

var kindNames = map[Kind]string{
	Texture:    "haralicks",
	Pattern:    "lbps",
	Labels:     "labels",
	Histograms: "surfdescriptors",
	Vocabulary: "k_means",
}

// String returns the file stem used for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts the names returned by String.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown artifact kind %q", name)
}

// trainOnly kinds are never written to or read from the test namespace.
func (k Kind) trainOnly() bool {
	return k == Labels || k == Vocabulary
}
