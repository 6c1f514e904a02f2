// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/exbus.go/pkg/cli/cmds/frames"
	_ "github.com/robotalks/exbus.go/pkg/cli/cmds/replay"
)
