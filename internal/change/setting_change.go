package change

import (
	"fmt"
	"time"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/settingcatalog"
)

// SettingChange sets or unsets a single setting at a given applicability
// (spec §3, §4.4).
type SettingChange struct {
	Applicability clustermodel.Applicability
	SettingName   string
	Op            Op
	Key           string // only meaningful when the setting isMap
	Value         string // only meaningful for Op == OpSet

	catalog *settingcatalog.Catalog
}

// NewSettingChange binds a SettingChange to the catalog it validates
// against. The catalog is not persisted with the change; it is supplied
// fresh by whichever process (server, client, service) is evaluating it.
func NewSettingChange(catalog *settingcatalog.Catalog, applicability clustermodel.Applicability, settingName string, op Op, key, value string) *SettingChange {
	return &SettingChange{
		Applicability: applicability,
		SettingName:   settingName,
		Op:            op,
		Key:           key,
		Value:         value,
		catalog:       catalog,
	}
}

// BindCatalog attaches a catalog to a SettingChange decoded off the wire,
// which carries no catalog reference of its own.
func (sc *SettingChange) BindCatalog(catalog *settingcatalog.Catalog) { sc.catalog = catalog }

func (sc *SettingChange) setting() (settingcatalog.Setting, error) {
	if sc.catalog == nil {
		return settingcatalog.Setting{}, fmt.Errorf("change: setting change has no bound catalog")
	}
	s, ok := sc.catalog.Lookup(sc.SettingName)
	if !ok {
		return settingcatalog.Setting{}, notApplicable("unknown setting %q", sc.SettingName)
	}
	return s, nil
}

// CanApply validates scope compatibility, runs the setting's value
// validator (for a set) and resolves the target entity.
func (sc *SettingChange) CanApply(c *clustermodel.Cluster) error {
	setting, err := sc.setting()
	if err != nil {
		return err
	}
	if setting.MutableWhen == settingcatalog.MutableAtConfigurationOnly {
		return notApplicable("setting %q may only be set during activation", sc.SettingName)
	}
	if err := setting.CheckApplicability(sc.Applicability.Scope); err != nil {
		return fmt.Errorf("%w: %s", ErrNotApplicable, err)
	}
	if setting.IsMap && sc.Key == "" {
		return notApplicable("setting %q is map-valued and requires a key", sc.SettingName)
	}
	if sc.Op == OpSet {
		if err := setting.ValidateValue(sc.Value); err != nil {
			return fmt.Errorf("%w: %s", ErrNotApplicable, err)
		}
	}
	if _, _, err := sc.target(c); err != nil {
		return fmt.Errorf("%w: %s", ErrNotApplicable, err)
	}
	return nil
}

// target resolves the map of string->string this change writes into: node
// tc-properties/loggers/data-dirs, or the cluster's offheap map, keyed by
// applicability and setting name.
func (sc *SettingChange) target(c *clustermodel.Cluster) (set func(value string), unset func(), err error) {
	switch sc.Applicability.Scope {
	case clustermodel.ScopeCluster:
		return sc.clusterTarget(c)
	case clustermodel.ScopeStripe:
		stripe := c.StripeByUID(sc.Applicability.StripeUID)
		if stripe == nil {
			return nil, nil, fmt.Errorf("stripe %s not found", sc.Applicability.StripeUID)
		}
		return sc.stripeTarget(stripe)
	case clustermodel.ScopeNode:
		stripe := c.StripeByUID(sc.Applicability.StripeUID)
		if stripe == nil {
			return nil, nil, fmt.Errorf("stripe %s not found", sc.Applicability.StripeUID)
		}
		node := stripe.NodeByUID(sc.Applicability.NodeUID)
		if node == nil {
			return nil, nil, fmt.Errorf("node %s not found in stripe %s", sc.Applicability.NodeUID, sc.Applicability.StripeUID)
		}
		return sc.nodeTarget(node)
	default:
		return nil, nil, fmt.Errorf("unknown applicability scope %q", sc.Applicability.Scope)
	}
}

func (sc *SettingChange) clusterTarget(c *clustermodel.Cluster) (func(string), func(), error) {
	switch sc.SettingName {
	case settingcatalog.ClusterOffheap:
		return func(v string) { c.Offheap[sc.Key] = parseIntOrZero(v) }, func() { delete(c.Offheap, sc.Key) }, nil
	case settingcatalog.ClusterReconnect:
		return func(v string) { c.ClientReconnectWindow = durationOrZero(v) }, func() { c.ClientReconnectWindow = 0 }, nil
	case settingcatalog.ClusterLease:
		return func(v string) { c.ClientLeaseDuration = durationOrZero(v) }, func() { c.ClientLeaseDuration = 0 }, nil
	case settingcatalog.ClusterName:
		return func(v string) { c.Name = v }, func() {}, nil
	case settingcatalog.SecuritySslTLS:
		return func(v string) { applyToAllNodes(c, func(n *clustermodel.Node) { n.Security.SslTLS = v == "true" }) }, func() { applyToAllNodes(c, func(n *clustermodel.Node) { n.Security.SslTLS = false }) }, nil
	case settingcatalog.SecurityAuthc:
		return func(v string) { applyToAllNodes(c, func(n *clustermodel.Node) { n.Security.Authc = clustermodel.AuthcMode(v) }) }, func() { applyToAllNodes(c, func(n *clustermodel.Node) { n.Security.Authc = clustermodel.AuthcNone }) }, nil
	case settingcatalog.SecurityWhitelist:
		return func(v string) { applyToAllNodes(c, func(n *clustermodel.Node) { n.Security.Whitelist = v == "true" }) }, func() { applyToAllNodes(c, func(n *clustermodel.Node) { n.Security.Whitelist = false }) }, nil
	default:
		return nil, nil, fmt.Errorf("setting %q is not a recognized cluster setting", sc.SettingName)
	}
}

func (sc *SettingChange) stripeTarget(s *clustermodel.Stripe) (func(string), func(), error) {
	return nil, nil, fmt.Errorf("setting %q has no stripe-scoped target", sc.SettingName)
}

func (sc *SettingChange) nodeTarget(n *clustermodel.Node) (func(string), func(), error) {
	switch sc.SettingName {
	case settingcatalog.NodeBackupDir:
		return func(v string) { n.BackupDir = v }, func() { n.BackupDir = "" }, nil
	case settingcatalog.NodeMetadataDir:
		return func(v string) { n.MetadataDir = v }, func() { n.MetadataDir = "" }, nil
	case settingcatalog.NodeLogDir:
		return func(v string) { n.LogDir = v }, func() { n.LogDir = "" }, nil
	case settingcatalog.NodeAuditDir:
		return func(v string) { n.AuditDir = v }, func() { n.AuditDir = "" }, nil
	case settingcatalog.NodeDataDir:
		return func(v string) { n.DataDirs[sc.Key] = v }, func() { delete(n.DataDirs, sc.Key) }, nil
	case settingcatalog.NodeTCProperty:
		return func(v string) { n.TCProperties[sc.Key] = v }, func() { delete(n.TCProperties, sc.Key) }, nil
	case settingcatalog.NodeLogger:
		return func(v string) { n.Loggers[sc.Key] = v }, func() { delete(n.Loggers, sc.Key) }, nil
	default:
		return nil, nil, fmt.Errorf("setting %q is not a recognized node setting", sc.SettingName)
	}
}

func applyToAllNodes(c *clustermodel.Cluster, f func(*clustermodel.Node)) {
	for _, n := range c.AllNodes() {
		f(n)
	}
}

// parseIntOrZero and durationOrZero ignore Sscanf's error: CanApply already
// ran the setting's validator against v before Apply is reached, so a
// malformed value here would mean validation was skipped, not that this
// value is untrusted.
func parseIntOrZero(v string) int64 {
	var n int64
	fmt.Sscanf(v, "%d", &n)
	return n
}

func durationOrZero(v string) (d time.Duration) {
	fmt.Sscanf(v, "%d", &d)
	return d
}

// Apply clones the cluster and writes the new (or default, on unset) value
// at the resolved target.
func (sc *SettingChange) Apply(c *clustermodel.Cluster) (*clustermodel.Cluster, error) {
	cp := c.Clone()
	set, unset, err := sc.target(cp)
	if err != nil {
		return nil, err
	}
	switch sc.Op {
	case OpSet:
		set(sc.Value)
	case OpUnset:
		setting, err := sc.setting()
		if err != nil {
			return nil, err
		}
		if def := setting.DefaultValue(); def != "" {
			set(def)
		} else {
			unset()
		}
	default:
		return nil, fmt.Errorf("change: unknown op %q", sc.Op)
	}
	return cp, nil
}

// Summary renders e.g. "set node.backup-dir @ node(stripe-1/node-A) = /backup".
func (sc *SettingChange) Summary() string {
	target := string(sc.Applicability.Scope)
	if sc.Applicability.Scope == clustermodel.ScopeNode {
		target = fmt.Sprintf("node(%s/%s)", sc.Applicability.StripeUID, sc.Applicability.NodeUID)
	} else if sc.Applicability.Scope == clustermodel.ScopeStripe {
		target = fmt.Sprintf("stripe(%s)", sc.Applicability.StripeUID)
	}
	if sc.Op == OpUnset {
		return fmt.Sprintf("unset %s @ %s", sc.SettingName, target)
	}
	return fmt.Sprintf("set %s @ %s = %s", sc.SettingName, target, sc.Value)
}

// RequiresRestart reflects the bound setting's mutability.
func (sc *SettingChange) RequiresRestart() bool {
	setting, err := sc.setting()
	if err != nil {
		return true // unknown settings are treated conservatively
	}
	return setting.MutableWhen == settingcatalog.MutableRequiresRestart
}
