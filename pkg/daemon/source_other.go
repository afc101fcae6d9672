//go:build !darwin

package daemon

import (
	"errors"

	"github.com/charlie0129/battinfo/pkg/feed"
)

func newSMCSource() (feed.Source, func(), error) {
	return nil, nil, errors.New("the smc source is only available on macOS")
}
