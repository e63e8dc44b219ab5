package transfer

import (
	"seadrop/device"
	"seadrop/distance"
)

// AcceptPolicy configures whether an inbound TransferRequest should be
// auto-accepted or surfaced to the caller (spec §4.8 receiver step 2,
// "Zone gating for auto-accept").
type AcceptPolicy struct {
	AutoAccept              bool
	SmallFileThresholdBytes uint64
	RecentSecurityAlert     bool
}

// ShouldAutoAccept implements spec §4.8's zone-gated auto-accept rule.
// Non-trusted peers are never auto-accepted. Intimate/Close trusted peers
// always auto-accept; Nearby trusted peers auto-accept only under the
// small-file threshold; Far/Unknown always surface, as does any zone when
// a security alert fired within the configured hysteresis window.
func ShouldAutoAccept(trusted bool, zone distance.Zone, totalSize uint64, policy AcceptPolicy) bool {
	if !trusted || !policy.AutoAccept {
		return false
	}
	if policy.RecentSecurityAlert {
		return false
	}
	switch zone {
	case distance.ZoneIntimate, distance.ZoneClose:
		return true
	case distance.ZoneNearby:
		return totalSize <= policy.SmallFileThresholdBytes
	default:
		return false
	}
}

// TrustChecker is the subset of truststore.Store the receiver needs to
// gate an incoming request (spec §4.5 is_trusted/is_blocked).
type TrustChecker interface {
	IsTrusted(id device.ID) (bool, error)
	IsBlocked(id device.ID) (bool, error)
}

// ZoneLookup is the subset of distance.Engine the receiver needs.
type ZoneLookup interface {
	Zone(id device.ID) distance.Zone
}
