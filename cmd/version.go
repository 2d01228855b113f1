package cmd

import (
	"fmt"
	"runtime"

	"grimm.is/opnwatch/internal/brand"
)

// RunVersion prints build information.
func RunVersion() {
	fmt.Fprintf(Out, "%s %s (commit %s, built %s, %s)\n",
		brand.Name, brand.Version, brand.GitCommit, brand.BuildTime, runtime.Version())
}
