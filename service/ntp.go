package service

import (
	"time"

	"github.com/beevik/ntp"
	"go.dedis.ch/onet/v3/log"
)

// checkClockDrift asks the configured NTP servers for the local clock
// offset and warns when it exceeds the configured bound. Anchors assert
// existence-at-a-time, so a skewed clock quietly weakens every timestamp
// this node mints. Advisory only: failures are logged, never fatal.
func (s *Service) checkClockDrift() {
	bound := time.Duration(s.cfg.MaxClockDriftMillis) * time.Millisecond
	for _, server := range s.cfg.NTPServers {
		resp, err := ntp.Query(server)
		if err != nil {
			log.Lvl3("ntp query to", server, "failed:", err)
			continue
		}
		drift := resp.ClockOffset
		if drift < 0 {
			drift = -drift
		}
		if drift > bound {
			log.Warnf("local clock is off by %s (ntp %s), anchor timestamps "+
				"will be skewed", resp.ClockOffset, server)
		} else {
			log.Lvl2("clock drift", resp.ClockOffset, "within", bound)
		}
		return
	}
	log.Warn("clock drift check failed: no ntp server answered")
}
