// SPDX-License-Identifier: MPL-2.0

// envforge builds reproducible environment images from declarative
// forgefile.cue recipes.
package main

import cmd "envforge-cli/cmd/envforge"

func main() {
	cmd.Execute()
}
