// Command logvault archives CloudWatch log groups to S3 in daily windows.
package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/3leaps/logvault/internal/cmd"
	"github.com/3leaps/logvault/internal/observability"
)

// Injected via ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

// exitCodeRe extracts the exit code that command errors carry in-band.
var exitCodeRe = regexp.MustCompile(`\(exit code (\d+)\)$`)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	err := cmd.Execute()
	observability.Sync()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	if m := exitCodeRe.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			os.Exit(code)
		}
	}
	os.Exit(1)
}
