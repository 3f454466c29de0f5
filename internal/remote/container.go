package remote

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ContainerSource renders the remote entry script: a self-registering
// container exposing get/init over the specifier→chunk map, installed on
// globalThis under the configured namespace. Chunk paths are relative to
// the entry file. Output is deterministic: specifiers are emitted sorted.
func ContainerSource(namespace string, chunks map[string]string) []byte {
	names := make([]string, 0, len(chunks))
	for name := range chunks {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\"use strict\";\n(() => {\n  const chunks = {\n")
	for _, name := range names {
		b.WriteString("    ")
		b.WriteString(jsString(name))
		b.WriteString(": ")
		b.WriteString(jsString("./" + chunks[name]))
		b.WriteString(",\n")
	}
	b.WriteString("  };\n")
	b.WriteString(`  const container = {
    get(name) {
      const chunk = chunks[name];
      if (!chunk) {
        return Promise.reject(new Error("unknown module: " + name));
      }
      return import(chunk).then((mod) => () => mod);
    },
    init() {
      return Promise.resolve();
    },
  };
`)
	fmt.Fprintf(&b, "  globalThis[%s] = container;\n})();\n", jsString(namespace))
	return []byte(b.String())
}

// VirtualEntrySource renders the generated module that re-exports one
// dependency, giving every specifier a stable bundle entry point. The
// default export mirrors CommonJS interop: packages without one expose
// their namespace object instead.
func VirtualEntrySource(specifier string) []byte {
	quoted := jsString(specifier)
	var b strings.Builder
	fmt.Fprintf(&b, "export * from %s;\n", quoted)
	fmt.Fprintf(&b, "import * as __all from %s;\n", quoted)
	b.WriteString("export default __all && __all.default !== undefined ? __all.default : __all;\n")
	return []byte(b.String())
}

// jsString renders s as a double-quoted JS string literal. JSON escaping
// is a strict subset of what JS accepts, so this is always valid.
func jsString(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		// Strings never fail to marshal.
		return `""`
	}
	return string(out)
}
