package gateway

import (
	"strings"

	"modfed/internal/remote"
)

// Asset identifies one managed file inside the bundle output directory.
type Asset struct {
	Name string
	Kind remote.Kind
}

// Classify decides whether a request path addresses a managed bundle
// asset. The public path prefix is stripped first; paths outside it, and
// file names outside the known artifact families, are not ours.
func Classify(publicPath, requestPath string) (Asset, bool) {
	if publicPath == "" {
		publicPath = "/"
	}
	if !strings.HasPrefix(requestPath, publicPath) {
		return Asset{}, false
	}
	name := strings.TrimPrefix(requestPath, publicPath)
	kind, ok := remote.Classify(name)
	if !ok {
		return Asset{}, false
	}
	return Asset{Name: name, Kind: kind}, true
}
