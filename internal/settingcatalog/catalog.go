package settingcatalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// Well-known setting names. These are the identifiers a SettingChange
// carries on the wire (spec §6 change JSON); client-facing tools (out of
// scope per spec §1) are expected to use these same names.
const (
	NodeBackupDir    = "node.backup-dir"
	NodeMetadataDir  = "node.metadata-dir"
	NodeLogDir       = "node.log-dir"
	NodeAuditDir     = "node.audit-dir"
	NodeDataDir      = "node.data-dir" // map: data-dir-name -> path
	NodeTCProperty   = "node.tc-property" // map: key -> value
	NodeLogger       = "node.logger" // map: logger-name -> level

	ClusterOffheap     = "cluster.offheap-resource" // map: resource-name -> bytes
	ClusterReconnect   = "cluster.client-reconnect-window"
	ClusterLease       = "cluster.client-lease-duration"
	ClusterName        = "cluster.name"

	SecuritySslTLS    = "security.ssl-tls"
	SecurityAuthc     = "security.authc"
	SecurityWhitelist = "security.whitelist"
)

// Catalog is a name-indexed registry of Setting descriptors. It is built
// once at process start and treated as read-only thereafter.
type Catalog struct {
	byName map[string]Setting
}

// NewCatalog returns the built-in setting catalog.
func NewCatalog() *Catalog {
	c := &Catalog{byName: make(map[string]Setting)}
	for _, s := range builtinSettings() {
		c.byName[s.Name] = s
	}
	return c
}

// Lookup returns the setting registered under name, or false if unknown.
func (c *Catalog) Lookup(name string) (Setting, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// MustLookup panics if name is not registered; used only for wiring
// well-known constants at startup, never on a request path.
func (c *Catalog) MustLookup(name string) Setting {
	s, ok := c.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("settingcatalog: unknown setting %q", name))
	}
	return s
}

// Names returns every registered setting name, sorted for stable output.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func validatePath(value string) error {
	if value == "" {
		return fmt.Errorf("settingcatalog: path must not be empty")
	}
	if !filepath.IsAbs(value) && !isSyntacticallyValidRelative(value) {
		return fmt.Errorf("settingcatalog: %q is not a syntactically valid path", value)
	}
	return nil
}

func isSyntacticallyValidRelative(value string) bool {
	return !strings.ContainsAny(value, "\x00") && filepath.Clean(value) != "."
}

func validatePositiveBytes(value string) error {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("settingcatalog: %q is not an integer byte size: %w", value, err)
	}
	if n <= 0 {
		return fmt.Errorf("settingcatalog: byte size must be > 0, got %d", n)
	}
	return nil
}

func validateDuration(value string) error {
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return fmt.Errorf("settingcatalog: %q is not an integer duration (milliseconds): %w", value, err)
	}
	return nil
}

func validateBool(value string) error {
	_, err := strconv.ParseBool(value)
	return err
}

func parseBytes(raw string) (interface{}, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func parseBool(raw string) (interface{}, error) {
	return strconv.ParseBool(raw)
}

func builtinSettings() []Setting {
	return []Setting{
		{Name: NodeBackupDir, ScopeAllowed: clustermodel.ScopeNode, MutableWhen: MutableAtRuntime, Validate: validatePath},
		{Name: NodeMetadataDir, ScopeAllowed: clustermodel.ScopeNode, MutableWhen: MutableRequiresRestart, Validate: validatePath},
		{Name: NodeLogDir, ScopeAllowed: clustermodel.ScopeNode, MutableWhen: MutableRequiresRestart, Validate: validatePath},
		{Name: NodeAuditDir, ScopeAllowed: clustermodel.ScopeNode, MutableWhen: MutableRequiresRestart, Validate: validatePath},
		{Name: NodeDataDir, ScopeAllowed: clustermodel.ScopeNode, IsMap: true, RequiredAtActivation: true, MutableWhen: MutableAtConfigurationOnly, Validate: validatePath},
		{Name: NodeTCProperty, ScopeAllowed: clustermodel.ScopeNode, IsMap: true, MutableWhen: MutableRequiresRestart},
		{Name: NodeLogger, ScopeAllowed: clustermodel.ScopeNode, IsMap: true, MutableWhen: MutableAtRuntime, Default: func() string { return "INFO" }},

		{Name: ClusterOffheap, ScopeAllowed: clustermodel.ScopeCluster, IsMap: true, MutableWhen: MutableRequiresRestart, Validate: validatePositiveBytes, Parse: parseBytes},
		{Name: ClusterReconnect, ScopeAllowed: clustermodel.ScopeCluster, MutableWhen: MutableAtRuntime, Validate: validateDuration, Parse: parseBytes, Default: func() string { return "120000" }},
		{Name: ClusterLease, ScopeAllowed: clustermodel.ScopeCluster, MutableWhen: MutableAtRuntime, Validate: validateDuration, Parse: parseBytes, Default: func() string { return "20000" }},
		{Name: ClusterName, ScopeAllowed: clustermodel.ScopeCluster, RequiredAtActivation: true, MutableWhen: MutableAtConfigurationOnly},

		{Name: SecuritySslTLS, ScopeAllowed: clustermodel.ScopeCluster, MutableWhen: MutableRequiresRestart, Validate: validateBool, Parse: parseBool, Default: func() string { return "false" }},
		{Name: SecurityAuthc, ScopeAllowed: clustermodel.ScopeCluster, MutableWhen: MutableRequiresRestart},
		{Name: SecurityWhitelist, ScopeAllowed: clustermodel.ScopeCluster, MutableWhen: MutableRequiresRestart, Validate: validateBool, Parse: parseBool, Default: func() string { return "false" }},
	}
}
