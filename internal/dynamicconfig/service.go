// Package dynamicconfig implements the node-local service that sits between
// a nomadserver.Server and the running process: it tracks the runtime vs
// upcoming NodeContext, notifies listeners outside any lock, drives
// single-shot cluster activation, and schedules delayed restarts (spec
// §4.7).
package dynamicconfig

import (
	"fmt"
	"sync"
	"time"

	logging "github.com/op/go-logging"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/support"
	"github.com/cljohnso/terracotta-platform/internal/validate"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("dynamicconfig")
}

// ConfigurationKind distinguishes which event a listener is told fired.
type ConfigurationKind string

const (
	KindRuntime  ConfigurationKind = "runtime"
	KindUpcoming ConfigurationKind = "upcoming"
)

// Listener is notified after upcoming (and, when applicable, runtime) is
// replaced. Notification always happens outside any lock (spec §5
// "Suspension points... must not be performed while holding any lock").
type Listener interface {
	OnNewConfiguration(kind ConfigurationKind, ctx *clustermodel.NodeContext)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(kind ConfigurationKind, ctx *clustermodel.NodeContext)

func (f ListenerFunc) OnNewConfiguration(kind ConfigurationKind, ctx *clustermodel.NodeContext) {
	f(kind, ctx)
}

// Activator is the narrow surface of the nomad client/server needed to
// drive single-shot cluster activation: encode and commit a
// ClusterActivationChange.
type Activator interface {
	Activate(cluster *clustermodel.Cluster, licenseContent []byte) error
}

// Service is the runtime/upcoming tracker described in spec §4.7. It
// implements nomadserver.CommitListener via OnCommit.
type Service struct {
	mu sync.Mutex

	runtime  *clustermodel.NodeContext
	upcoming *clustermodel.NodeContext

	activated     bool
	activator     Activator
	validator     *validate.Validator
	licenseCheck  validate.LicenseCapabilityCheck
	installedLicense []byte

	listenersMu sync.Mutex
	listeners   []*listenerEntry

	clock     support.Clock
	scheduler support.Scheduler
	restart   support.RestartHook

	restartCancel func()

	// localNodeName is the name this node was configured with, used to
	// locate it within a proposed cluster at activation time, before any
	// NodeContext (and therefore UID) exists (spec §4.6, §4.7).
	localNodeName string
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// Options configures a new Service. Clock/Scheduler/RestartHook default to
// the production support.System* implementations when left nil.
type Options struct {
	Activator     Activator
	Validator     *validate.Validator
	LicenseCheck  validate.LicenseCapabilityCheck
	LocalNodeName string
	Clock         support.Clock
	Scheduler     support.Scheduler
	Restart       support.RestartHook
}

func New(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = support.SystemClock
	}
	if opts.Scheduler == nil {
		opts.Scheduler = support.SystemScheduler
	}
	if opts.Restart == nil {
		opts.Restart = support.ProcessExitRestartHook{ExitCode: 0}
	}
	return &Service{
		activator:     opts.Activator,
		validator:     opts.Validator,
		licenseCheck:  opts.LicenseCheck,
		localNodeName: opts.LocalNodeName,
		clock:         opts.Clock,
		scheduler:     opts.Scheduler,
		restart:       opts.Restart,
	}
}

// Runtime returns the context reflecting changes already applied to the
// live process.
func (s *Service) Runtime() *clustermodel.NodeContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime
}

// Upcoming returns the context reflecting every committed change, whether
// or not it has taken effect yet.
func (s *Service) Upcoming() *clustermodel.NodeContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upcoming
}

// IsRestartRequired reports whether upcoming has diverged from runtime
// (spec §4.7: "isRestartRequired() ≡ runtime ≠ upcoming").
func (s *Service) IsRestartRequired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !sameContext(s.runtime, s.upcoming)
}

// sameContext compares identity, not structural equality: OnCommit assigns
// the exact same *NodeContext to both runtime and upcoming whenever a
// change is runtime-applicable, so pointer identity is sufficient to detect
// divergence without a deep Cluster comparison.
func sameContext(a, b *clustermodel.NodeContext) bool {
	return a == b
}

// OnCommit implements nomadserver.CommitListener. It atomically replaces
// upcoming; when the committing change was runtime-applicable, it also
// replaces runtime and fires onNewRuntimeConfiguration, otherwise it fires
// onNewUpcomingConfiguration (spec §4.7).
func (s *Service) OnCommit(ctx *clustermodel.NodeContext, requiresRestart bool) {
	s.mu.Lock()
	s.upcoming = ctx
	kind := KindUpcoming
	if !requiresRestart {
		s.runtime = ctx
		kind = KindRuntime
	}
	s.mu.Unlock()

	s.notify(kind, ctx)
}

// Subscribe registers a listener and returns a handle whose Unsubscribe
// removes it. Listener order is registration order (spec §4.7); the list
// is copy-on-write so unsubscribing mid-notification never invalidates the
// traversal in progress (spec §5).
func (s *Service) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	entry := &listenerEntry{id: s.nextListenerIDUnsafe(), listener: l}
	next := make([]*listenerEntry, len(s.listeners)+1)
	copy(next, s.listeners)
	next[len(s.listeners)] = entry
	s.listeners = next

	return func() { s.unsubscribe(entry.id) }
}

func (s *Service) nextListenerIDUnsafe() uint64 {
	var max uint64
	for _, e := range s.listeners {
		if e.id > max {
			max = e.id
		}
	}
	return max + 1
}

func (s *Service) unsubscribe(id uint64) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	next := make([]*listenerEntry, 0, len(s.listeners))
	for _, e := range s.listeners {
		if e.id != id {
			next = append(next, e)
		}
	}
	s.listeners = next
}

// notify fires every currently-subscribed listener, outside of s.mu. A
// listener that panics is logged and skipped; it does not abort the loop.
func (s *Service) notify(kind ConfigurationKind, ctx *clustermodel.NodeContext) {
	s.listenersMu.Lock()
	snapshot := s.listeners
	s.listenersMu.Unlock()

	for _, e := range snapshot {
		s.invokeListener(e.listener, kind, ctx)
	}
}

func (s *Service) invokeListener(l Listener, kind ConfigurationKind, ctx *clustermodel.NodeContext) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("dynamicconfig: listener panicked, skipping: %v", r)
		}
	}()
	l.OnNewConfiguration(kind, ctx)
}

// ErrAlreadyActivated is returned by Activate when the service has already
// completed a single-shot activation.
var ErrAlreadyActivated = fmt.Errorf("dynamicconfig: cluster already activated")

// Activate is a convenience wrapper around PrepareActivation with no
// license.
func (s *Service) Activate(cluster *clustermodel.Cluster) error {
	return s.PrepareActivation(cluster, nil)
}

// PrepareActivation validates that the calling node is a member of the
// proposed cluster, installs the license (if any) transactionally, and
// activates (spec §4.7). Activation is single-shot: a second call fails
// with ErrAlreadyActivated.
func (s *Service) PrepareActivation(cluster *clustermodel.Cluster, license []byte) error {
	s.mu.Lock()
	if s.activated {
		s.mu.Unlock()
		return ErrAlreadyActivated
	}
	s.mu.Unlock()

	if err := checkMembership(cluster, s.localNodeName); err != nil {
		return fmt.Errorf("dynamicconfig: activation membership check: %w", err)
	}

	prior := s.installedLicense
	if license != nil {
		if s.licenseCheck != nil {
			if err := s.licenseCheck(cluster); err != nil {
				return fmt.Errorf("dynamicconfig: license capability check failed: %w", err)
			}
		}
		s.installedLicense = license
	}

	if s.validator != nil {
		if err := s.validator.Validate(cluster); err != nil {
			s.installedLicense = prior
			return fmt.Errorf("dynamicconfig: activation validation failed: %w", err)
		}
	}

	if s.activator == nil {
		s.installedLicense = prior
		return fmt.Errorf("dynamicconfig: no activator configured")
	}
	if err := s.activator.Activate(cluster, license); err != nil {
		s.installedLicense = prior
		return fmt.Errorf("dynamicconfig: activation failed: %w", err)
	}

	s.mu.Lock()
	s.activated = true
	s.mu.Unlock()
	return nil
}

func checkMembership(cluster *clustermodel.Cluster, localNodeName string) error {
	if cluster == nil {
		return fmt.Errorf("cluster is nil")
	}
	for _, stripe := range cluster.Stripes {
		if stripe.NodeByName(localNodeName) != nil {
			return nil
		}
	}
	return fmt.Errorf("local node %q is not a member of the proposed cluster", localNodeName)
}

// ErrRestartDelayTooShort is returned by Restart when delay is under one
// second (spec §4.7: "rejects delays < 1 second").
var ErrRestartDelayTooShort = fmt.Errorf("dynamicconfig: restart delay must be at least 1 second")

// Restart schedules a single background restart after delay, replacing any
// previously scheduled restart.
func (s *Service) Restart(delay time.Duration) error {
	if delay < time.Second {
		return ErrRestartDelayTooShort
	}

	s.mu.Lock()
	if s.restartCancel != nil {
		s.restartCancel()
	}
	s.restartCancel = s.scheduler.After(delay, func() {
		logger.Warning("dynamicconfig: scheduled restart firing")
		if err := s.restart.Restart(); err != nil {
			logger.Errorf("dynamicconfig: restart hook failed: %v", err)
		}
	})
	s.mu.Unlock()
	return nil
}

// CancelRestart cancels any outstanding scheduled restart. It is a no-op if
// none is pending.
func (s *Service) CancelRestart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restartCancel != nil {
		s.restartCancel()
		s.restartCancel = nil
	}
}
