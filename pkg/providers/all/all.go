// Package all registers every bundled provider through blank imports.
// The command entrypoint imports it once so that the standard plugin
// manifests resolve to factories.
package all

import (
	_ "github.com/twinsync/twinsync/pkg/providers/croncfg"
	_ "github.com/twinsync/twinsync/pkg/providers/debpkg"
	_ "github.com/twinsync/twinsync/pkg/providers/dockerinfo"
	_ "github.com/twinsync/twinsync/pkg/providers/filemirror"
	_ "github.com/twinsync/twinsync/pkg/providers/journal"
	_ "github.com/twinsync/twinsync/pkg/providers/logfiles"
	_ "github.com/twinsync/twinsync/pkg/providers/sysinfo"
	_ "github.com/twinsync/twinsync/pkg/providers/systemd"
)
