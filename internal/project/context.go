package project

import (
	"path/filepath"
	"strings"
)

// Defaults applied by NewBuildContext when the corresponding option is
// left empty.
const (
	DefaultNamespace  = "mf"
	DefaultBundler    = "esbuild"
	DefaultAppDir     = "src"
	DefaultPublishDir = "dist"
	DefaultPublicPath = "/"

	// StateDirName is the per-project root for everything this tool owns.
	StateDirName = ".modfed"
	// bundleDirName holds the bundled artifact inside a mode's state dir.
	bundleDirName = "bundle"
	// snapshotFileName is the persisted dependency snapshot.
	snapshotFileName = "deps.snapshot"
)

// Options configures a BuildContext. Zero values fall back to defaults;
// only Root and Mode are required.
type Options struct {
	Root       string // project root (directory containing the manifest)
	Mode       Mode
	Namespace  string            // global variable the remote entry registers
	Bundler    string            // external bundler binary name or path
	AppDir     string            // application sources, relative to Root
	PublishDir string            // production copy target, relative to Root
	PublicPath string            // URL prefix the gateway strips
	Aliases    map[string]string // specifier rewrites passed to the bundler
	Externals  []string          // left unresolved at bundle time
	Exclude    []string          // never treated as pre-bundled dependencies
	Include    []string          // always recorded, even if never scanned
}

// BuildContext carries everything a build needs: the mode, the resolved
// directory layout and the bundling options. It is constructed once per
// mode and passed by pointer; callers never mutate it after construction.
type BuildContext struct {
	Mode       Mode
	Root       string
	Namespace  string
	Bundler    string
	AppDir     string
	PublishDir string
	PublicPath string
	Aliases    map[string]string
	Externals  []string
	Exclude    []string
	Include    []string

	cacheDir string
}

// NewBuildContext validates opts, resolves the directory layout and
// returns the immutable context.
func NewBuildContext(opts Options) (*BuildContext, error) {
	if opts.Root == "" {
		return nil, &ConfigError{Field: "root", Reason: "project root is required"}
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, &ConfigError{Field: "root", Reason: err.Error()}
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	bc := &BuildContext{
		Mode:       mode,
		Root:       root,
		Namespace:  opts.Namespace,
		Bundler:    opts.Bundler,
		AppDir:     opts.AppDir,
		PublishDir: opts.PublishDir,
		PublicPath: opts.PublicPath,
		Aliases:    opts.Aliases,
		Externals:  opts.Externals,
		Exclude:    opts.Exclude,
		Include:    opts.Include,
	}
	if bc.Namespace == "" {
		bc.Namespace = DefaultNamespace
	}
	if bc.Bundler == "" {
		bc.Bundler = DefaultBundler
	}
	if bc.AppDir == "" {
		bc.AppDir = DefaultAppDir
	}
	if bc.PublishDir == "" {
		bc.PublishDir = DefaultPublishDir
	}
	if bc.PublicPath == "" {
		bc.PublicPath = DefaultPublicPath
	}
	if !strings.HasPrefix(bc.PublicPath, "/") {
		return nil, &ConfigError{Field: "public_path", Reason: "must start with '/'"}
	}
	if !strings.HasSuffix(bc.PublicPath, "/") {
		bc.PublicPath += "/"
	}
	if !IsValidNamespace(bc.Namespace) {
		return nil, &ConfigError{Field: "namespace", Reason: "must be a valid identifier"}
	}
	bc.cacheDir = filepath.Join(root, StateDirName, string(mode))
	return bc, nil
}

// CacheDir is the per-mode state directory (.modfed/<mode>).
func (bc *BuildContext) CacheDir() string { return bc.cacheDir }

// BundleDir is the per-mode working/output directory the bundled artifact
// lives in. The gateway serves from here; production mirrors it into
// PublishAbs after a successful build.
func (bc *BuildContext) BundleDir() string { return filepath.Join(bc.cacheDir, bundleDirName) }

// SnapshotPath is the persisted dependency snapshot file for this mode.
func (bc *BuildContext) SnapshotPath() string { return filepath.Join(bc.cacheDir, snapshotFileName) }

// AppAbs is the absolute application source directory.
func (bc *BuildContext) AppAbs() string { return filepath.Join(bc.Root, bc.AppDir) }

// PublishAbs is the absolute production publish directory.
func (bc *BuildContext) PublishAbs() string { return filepath.Join(bc.Root, bc.PublishDir) }

// StateDir is the project-wide state root (.modfed), shared by both modes.
// clean removes this whole tree.
func (bc *BuildContext) StateDir() string { return filepath.Join(bc.Root, StateDirName) }
