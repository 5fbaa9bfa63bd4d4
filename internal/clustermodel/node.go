package clustermodel

// AuthcMode enumerates the node authentication schemes a cluster can require.
type AuthcMode string

const (
	AuthcNone        AuthcMode = ""
	AuthcCertificate AuthcMode = "certificate"
	AuthcFile        AuthcMode = "file"
	AuthcLDAP        AuthcMode = "ldap"
)

// Security holds the per-node security posture. Cluster-wide consistency of
// these fields is enforced by the validator, not by this type.
type Security struct {
	SslTLS      bool      `json:"sslTls"`
	Authc       AuthcMode `json:"authc"`
	Whitelist   bool      `json:"whitelist"`
	SecurityDir string    `json:"securityDir,omitempty"`
}

// Enabled reports whether any security feature requiring a security
// directory is turned on for this node.
func (s Security) Enabled() bool {
	return s.SslTLS || s.Authc != AuthcNone || s.Whitelist
}

// Node is a single cluster member's static and operator-set configuration.
// Nodes are mutated only through Nomad-committed changes once the owning
// cluster is activated (spec lifecycle, §3).
type Node struct {
	UID      UID    `json:"uid"`
	Name     string `json:"name"`
	Hostname string `json:"hostname,omitempty"`

	// PublicAddr is the host:port other nodes and clients use to reach this
	// node; must be unique cluster-wide (validator rule 2).
	PublicAddr string `json:"publicAddr"`
	GroupAddr  string `json:"groupAddr,omitempty"`
	BindAddr   string `json:"bindAddr,omitempty"`

	DataDirs    map[string]string `json:"dataDirs,omitempty"`
	LogDir      string            `json:"logDir,omitempty"`
	BackupDir   string            `json:"backupDir,omitempty"`
	MetadataDir string            `json:"metadataDir,omitempty"`
	AuditDir    string            `json:"auditDir,omitempty"`

	Security Security `json:"security"`

	TCProperties map[string]string `json:"tcProperties,omitempty"`
	Loggers      map[string]string `json:"loggers,omitempty"`
}

// NewNode returns a Node with all maps initialized and a freshly minted UID.
func NewNode(name string) *Node {
	return &Node{
		UID:          NewUID(),
		Name:         name,
		DataDirs:     make(map[string]string),
		TCProperties: make(map[string]string),
		Loggers:      make(map[string]string),
	}
}

// Clone returns a deep copy. Changes must never mutate a Node in place; they
// apply by producing a new Cluster value (spec §4.4: apply must be pure).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.DataDirs = cloneStringMap(n.DataDirs)
	cp.TCProperties = cloneStringMap(n.TCProperties)
	cp.Loggers = cloneStringMap(n.Loggers)
	return &cp
}

// CloneForAttachment produces a new Node that inherits cluster-level fields
// (security posture, stripe-common data directory names handled by the
// caller) from a reference node already in the stripe, per spec §4.6.
func (n *Node) CloneForAttachment(name, addr string) *Node {
	cp := n.Clone()
	cp.UID = NewUID()
	cp.Name = name
	cp.PublicAddr = addr
	cp.GroupAddr = ""
	cp.BindAddr = ""
	return cp
}

// DataDirNames returns the data directory names declared by this node, in
// no particular order.
func (n *Node) DataDirNames() []string {
	names := make([]string, 0, len(n.DataDirs))
	for k := range n.DataDirs {
		names = append(names, k)
	}
	return names
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
