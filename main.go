// SPDX-License-Identifier: MPL-2.0

// vx is a multi-runtime version manager: it resolves tool version
// requests against a managed store, composes an execution environment,
// and runs tools in place of their real binaries.
package main

import cmd "github.com/loonghao/vx-sub002/cmd/vx"

func main() {
	cmd.Execute()
}
