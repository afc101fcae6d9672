//go:build darwin

package daemon

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/feed"
	"github.com/charlie0129/battinfo/pkg/smc"
)

func newSMCSource() (feed.Source, func(), error) {
	conn := smc.New()
	if err := conn.Open(); err != nil {
		return nil, nil, pkgerrors.Wrap(err, "failed to open smc")
	}
	return smc.NewSource(conn), func() {
		logrus.Info("closing smc connection")
		if err := conn.Close(); err != nil {
			logrus.Errorf("failed to close smc connection: %v", err)
		}
	}, nil
}
