package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Configuration
	CfgInfo             Code = 1000
	CfgBadMode          Code = 1001
	CfgBadManifest      Code = 1002
	CfgMissingManifest  Code = 1003
	CfgBadNamespace     Code = 1004
	CfgBadPublicPath    Code = 1005
	CfgBundlerNotFound  Code = 1006
	CfgBadPublishDir    Code = 1007
	CfgBadAlias         Code = 1008
	CfgDuplicateInclude Code = 1009

	// Snapshot cache
	CchInfo          Code = 2000
	CchCorrupt       Code = 2001
	CchSchemaChanged Code = 2002
	CchWriteFailed   Code = 2003

	// Source scanning
	ScnInfo           Code = 3000
	ScnUnreadableFile Code = 3001
	ScnTooManyFiles   Code = 3002

	// Bundling
	BndInfo            Code = 4000
	BndFailed          Code = 4001
	BndBundlerMessage  Code = 4002
	BndBundlerWarning  Code = 4003
	BndMetafileMissing Code = 4004
	BndMetafileCorrupt Code = 4005
	BndEntryUnmapped   Code = 4006
	BndStageFailed     Code = 4007
	BndPublishFailed   Code = 4008

	// Asset serving
	AstInfo     Code = 5000
	AstNotFound Code = 5001
	AstReadErr  Code = 5002

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:         "Unknown error",
	CfgInfo:             "Configuration information",
	CfgBadMode:          "Unsupported mode",
	CfgBadManifest:      "Malformed manifest",
	CfgMissingManifest:  "Manifest not found",
	CfgBadNamespace:     "Invalid namespace identifier",
	CfgBadPublicPath:    "Invalid public path",
	CfgBundlerNotFound:  "Bundler binary not found",
	CfgBadPublishDir:    "Invalid publish directory",
	CfgBadAlias:         "Invalid alias mapping",
	CfgDuplicateInclude: "Duplicate include entry",
	CchInfo:             "Snapshot cache information",
	CchCorrupt:          "Snapshot cache is corrupt",
	CchSchemaChanged:    "Snapshot cache schema changed",
	CchWriteFailed:      "Snapshot cache write failed",
	ScnInfo:             "Scan information",
	ScnUnreadableFile:   "Source file could not be read",
	ScnTooManyFiles:     "Scan file limit reached",
	BndInfo:             "Bundling information",
	BndFailed:           "Bundling failed",
	BndBundlerMessage:   "Bundler reported an error",
	BndBundlerWarning:   "Bundler reported a warning",
	BndMetafileMissing:  "Bundler metafile missing",
	BndMetafileCorrupt:  "Bundler metafile is corrupt",
	BndEntryUnmapped:    "Entry has no output chunk",
	BndStageFailed:      "Artifact staging failed",
	BndPublishFailed:    "Publish copy failed",
	AstInfo:             "Asset information",
	AstNotFound:         "Managed asset not found",
	AstReadErr:          "Managed asset read failed",
	ObsInfo:             "Observability information",
	ObsTimings:          "Pipeline timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("CCH%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SCN%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("BND%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("AST%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
