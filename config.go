// SPDX-License-Identifier: GPL-3.0-or-later
//

package o2

import (
	"context"
	"net"
	"time"

	"github.com/rbdannenberg/o2go/internal/discovery"
	"github.com/rbdannenberg/o2go/internal/errclass"
)

// Config holds common configuration for an [Ensemble]. Pass this to
// [NewEnsemble] to pre-wire dependencies; all fields have sensible
// defaults set by [NewConfig].
type Config struct {
	// Ensemble is the ensemble name every discovery/control message is
	// tagged with; messages from a mismatched ensemble are dropped
	// silently.
	//
	// Must be set by the caller; [NewConfig] leaves it empty.
	Ensemble string

	// Dialer is used for the discovery layer's client-role TCP connects.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// Logger receives lifecycle (Info) and per-message/per-poll (Debug)
	// events from every component.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// ErrClassifier classifies transport errors for structured logging.
	//
	// Set by [NewConfig] to internal/errclass.Default.
	ErrClassifier errclass.ErrClassifier

	// TimeNow returns the current local (not ensemble) time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// DiscoveryPorts is the fixed, ordered port list processes round-
	// robin broadcast discovery against.
	//
	// Set by [NewConfig] to [discovery.Ports].
	DiscoveryPorts []int

	// PollTick is the sleep between successive poll cycles when driven
	// by [Ensemble.Run] rather than an externally-owned loop calling
	// [Ensemble.Poll] directly.
	//
	// Set by [NewConfig] to 2ms, comfortably finer than the scheduler's
	// 10ms bin width (internal/sched.TableLen bins at bin(t)=floor(t*100)).
	PollTick time.Duration
}

// Dialer abstracts the [*net.Dialer] behavior used by the discovery
// layer's client-role TCP connects.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewConfig creates a [*Config] with sensible defaults for every field
// except Ensemble, which the caller must set.
func NewConfig() *Config {
	ports := make([]int, len(discovery.Ports))
	copy(ports, discovery.Ports[:])
	return &Config{
		Dialer:         &net.Dialer{},
		Logger:         DefaultSLogger(),
		ErrClassifier:  errclass.Default,
		TimeNow:        time.Now,
		DiscoveryPorts: ports,
		PollTick:       2 * time.Millisecond,
	}
}
