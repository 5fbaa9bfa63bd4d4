// Package validate runs the whole-cluster invariants a proposed Cluster must
// satisfy before a Nomad server will accept it, either as a
// ClusterActivationChange or as the result of applying any other change
// (spec §4.5).
package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// Violation names the specific rule (1-9 in spec §4.5) that failed, plus a
// human-readable detail. The validator stops at the first violation
// encountered, as spec.md requires ("Emits the first violation
// encountered").
type Violation struct {
	Rule   int
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("validate: rule %d violated: %s", v.Rule, v.Detail)
}

func violation(rule int, format string, args ...interface{}) *Violation {
	return &Violation{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// LicenseCapabilityCheck is the external license collaborator's capability
// check, run as the validator's final pass when a license is installed
// (spec §4.5: "A license, when installed, adds a capability check"). The
// license's own parsing and format are out of scope (spec §1); only this
// narrow interface is pinned.
type LicenseCapabilityCheck func(c *clustermodel.Cluster) error

// Validator runs the §4.5 rules, in order, against a proposed cluster.
type Validator struct {
	licenseCheck LicenseCapabilityCheck
}

// New returns a Validator with no license check installed.
func New() *Validator {
	return &Validator{}
}

// WithLicenseCheck attaches the capability check to run after the
// structural rules pass.
func (v *Validator) WithLicenseCheck(check LicenseCapabilityCheck) *Validator {
	v.licenseCheck = check
	return v
}

// Validate runs every rule in spec.md §4.5 order and returns the first
// Violation encountered, or nil if the cluster is sound.
func (v *Validator) Validate(c *clustermodel.Cluster) error {
	if c == nil {
		return violation(1, "cluster is nil")
	}
	for _, rule := range []func(*clustermodel.Cluster) error{
		ruleNonEmptyName,
		ruleUniquePublicAddr,
		ruleUniqueStripeNodeName,
		ruleUniformDataDirs,
		ruleFailoverVoterParity,
		ruleSecurityConsistency,
		ruleOffheapUnique,
		ruleClientTiming,
		rulePathsSyntacticallyValid,
	} {
		if err := rule(c); err != nil {
			return err
		}
	}
	if v.licenseCheck != nil {
		if err := v.licenseCheck(c); err != nil {
			return fmt.Errorf("validate: license capability check failed: %w", err)
		}
	}
	return nil
}

// 1. Non-empty cluster name.
func ruleNonEmptyName(c *clustermodel.Cluster) error {
	if strings.TrimSpace(c.Name) == "" {
		return violation(1, "cluster name must not be empty")
	}
	return nil
}

// 2. Every Node has a unique public address cluster-wide.
func ruleUniquePublicAddr(c *clustermodel.Cluster) error {
	seen := make(map[string]clustermodel.UID)
	for _, n := range c.AllNodes() {
		if n.PublicAddr == "" {
			return violation(2, fmt.Sprintf("node %q has no public address", n.Name))
		}
		if prior, exists := seen[n.PublicAddr]; exists && prior != n.UID {
			return violation(2, fmt.Sprintf("duplicate public address %q", n.PublicAddr))
		}
		seen[n.PublicAddr] = n.UID
	}
	return nil
}

// 3. Every Node has a unique (stripe, name).
func ruleUniqueStripeNodeName(c *clustermodel.Cluster) error {
	for _, s := range c.Stripes {
		seen := make(map[string]bool)
		for _, n := range s.Nodes {
			if seen[n.Name] {
				return violation(3, fmt.Sprintf("duplicate node name %q in stripe %q", n.Name, s.Name))
			}
			seen[n.Name] = true
		}
	}
	return nil
}

// 4. All Nodes in a stripe declare identical data-directory name sets.
func ruleUniformDataDirs(c *clustermodel.Cluster) error {
	for _, s := range c.Stripes {
		if len(s.Nodes) == 0 {
			continue
		}
		reference := dataDirSet(s.Nodes[0])
		for _, n := range s.Nodes[1:] {
			if !sameSet(reference, dataDirSet(n)) {
				return violation(4, fmt.Sprintf("stripe %q has nodes with differing data-directory names", s.Name))
			}
		}
	}
	return nil
}

func dataDirSet(n *clustermodel.Node) map[string]bool {
	set := make(map[string]bool, len(n.DataDirs))
	for k := range n.DataDirs {
		set[k] = true
	}
	return set
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// 5. Failover-priority=consistency ⇒ voter-count ≥ 0 and
// (2*voters + node-count) is odd.
func ruleFailoverVoterParity(c *clustermodel.Cluster) error {
	if c.FailoverPriority.Kind != clustermodel.FailoverConsistency {
		return nil
	}
	voters := c.FailoverPriority.VoterCount
	if voters < 0 {
		return violation(5, fmt.Sprintf("voter count must be >= 0, got %d", voters))
	}
	nodeCount := len(c.AllNodes())
	if (2*voters+nodeCount)%2 == 0 {
		return violation(5, fmt.Sprintf("2*voters(%d) + nodeCount(%d) must be odd", voters, nodeCount))
	}
	return nil
}

// 6. Security consistency: ssl-tls, authc, whitelist uniform;
// security-dir present on every node iff any of those is set;
// authc=certificate ⇒ ssl-tls=true.
func ruleSecurityConsistency(c *clustermodel.Cluster) error {
	nodes := c.AllNodes()
	if len(nodes) == 0 {
		return nil
	}
	reference := nodes[0].Security
	for _, n := range nodes[1:] {
		if n.Security.SslTLS != reference.SslTLS || n.Security.Authc != reference.Authc || n.Security.Whitelist != reference.Whitelist {
			return violation(6, "security settings (ssl-tls, authc, whitelist) are not uniform across nodes")
		}
	}
	if reference.Authc == clustermodel.AuthcCertificate && !reference.SslTLS {
		return violation(6, "authc=certificate requires ssl-tls=true")
	}
	enabled := reference.Enabled()
	for _, n := range nodes {
		hasDir := n.Security.SecurityDir != ""
		if enabled != hasDir {
			return violation(6, fmt.Sprintf("node %q must declare a security-dir iff a security feature is enabled", n.Name))
		}
	}
	return nil
}

// 7. Offheap resource names unique (guaranteed by map type); each size > 0.
func ruleOffheapUnique(c *clustermodel.Cluster) error {
	for name, size := range c.Offheap {
		if size <= 0 {
			return violation(7, fmt.Sprintf("offheap resource %q must have size > 0, got %d", name, size))
		}
	}
	return nil
}

// 8. client-reconnect-window and client-lease-duration positive;
// lease ≤ reconnect window.
func ruleClientTiming(c *clustermodel.Cluster) error {
	if c.ClientReconnectWindow <= 0 {
		return violation(8, "client-reconnect-window must be positive")
	}
	if c.ClientLeaseDuration <= 0 {
		return violation(8, "client-lease-duration must be positive")
	}
	if c.ClientLeaseDuration > c.ClientReconnectWindow {
		return violation(8, "client-lease-duration must be <= client-reconnect-window")
	}
	return nil
}

// 9. Every path setting is a syntactically valid absolute or relative path.
// Paths are checked as written; no parameter substitution is performed.
func rulePathsSyntacticallyValid(c *clustermodel.Cluster) error {
	for _, n := range c.AllNodes() {
		paths := map[string]string{
			"log-dir": n.LogDir, "backup-dir": n.BackupDir,
			"metadata-dir": n.MetadataDir, "audit-dir": n.AuditDir,
		}
		for label, p := range paths {
			if p == "" {
				continue
			}
			if err := validPath(p); err != nil {
				return violation(9, fmt.Sprintf("node %q %s: %v", n.Name, label, err))
			}
		}
		for name, p := range n.DataDirs {
			if err := validPath(p); err != nil {
				return violation(9, fmt.Sprintf("node %q data-dir %q: %v", n.Name, name, err))
			}
		}
	}
	return nil
}

func validPath(p string) error {
	if strings.ContainsAny(p, "\x00") {
		return fmt.Errorf("contains NUL byte")
	}
	if filepath.IsAbs(p) {
		return nil
	}
	if filepath.Clean(p) == "." || p == "" {
		return fmt.Errorf("not a valid relative path")
	}
	return nil
}
