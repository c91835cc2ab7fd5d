//go:build !gocv

package match

import "fmt"

const openCVAvailable = false

func newOpenCVMatcher() (Matcher, error) {
	return nil, fmt.Errorf("opencv matcher not available: rebuild with -tags gocv")
}
