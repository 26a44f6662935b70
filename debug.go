package oleforms

import (
	"fmt"
	"os"
	"strings"
)

var (
	OLEFORMS_DEBUG *bool
)

// DebugPrintf writes diagnostics to stdout when OLEFORMS_DEBUG=1 is
// set in the environment. Non-fatal decode problems (unsupported
// control types, undecodable forms) are reported through here.
func DebugPrintf(fmt_str string, args ...interface{}) {
	if OLEFORMS_DEBUG == nil {
		value := false
		OLEFORMS_DEBUG = &value

		for _, x := range os.Environ() {
			if strings.HasPrefix(x, "OLEFORMS_DEBUG=1") {
				value = true
				break
			}
		}
	}

	if *OLEFORMS_DEBUG {
		if !strings.HasSuffix(fmt_str, "\n") {
			fmt_str += "\n"
		}
		fmt.Printf(fmt_str, args...)
	}
}
