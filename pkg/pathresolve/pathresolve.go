// Package pathresolve joins a tracee-read path against the traced
// process's current working directory when the path is relative. This is
// the Path Resolver component: it never touches the filesystem.
package pathresolve

import (
	"path"
	"strings"
)

// Resolve returns raw unchanged if it is already absolute; otherwise it
// joins wd and raw and lexically normalises "." and ".." segments, without
// any filesystem access (no symlink resolution, no stat).
func Resolve(wd, raw string) string {
	if strings.HasPrefix(raw, "/") {
		return raw
	}
	return path.Clean(wd + "/" + raw)
}
