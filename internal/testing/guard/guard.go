// Package guard forces test mode for packages that import it in their tests,
// keeping mains from starting real servers or workers under go test.
package guard

import "os"

func init() {
	if os.Getenv("CONTALIBRE_TEST_MODE") == "" {
		_ = os.Setenv("CONTALIBRE_TEST_MODE", "1")
	}
}
