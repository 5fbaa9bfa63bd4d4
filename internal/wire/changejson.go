package wire

import (
	"fmt"

	"github.com/cljohnso/terracotta-platform/internal/change"
	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
	"github.com/cljohnso/terracotta-platform/internal/settingcatalog"
)

// ChangeKind tags which change.Change variant a ChangeDoc carries.
type ChangeKind string

const (
	KindSetting         ChangeKind = "setting"
	KindMultiSetting    ChangeKind = "multiSetting"
	KindClusterActivate ChangeKind = "clusterActivation"
	KindFormatUpgrade   ChangeKind = "formatUpgrade"
	KindTopology        ChangeKind = "topology"
)

// ChangeDoc is the versioned envelope every Prepare message carries (spec
// §6). FormatVersion 1 addresses applicability by stripe index and node
// name; FormatVersion 2 addresses it by UID. A V1 document is accepted on
// read. The server does not track the cluster's format version and does not
// require a FormatUpgradeChange before accepting further changes.
type ChangeDoc struct {
	FormatVersion int        `json:"formatVersion"`
	Kind          ChangeKind `json:"kind"`

	Setting *settingChangeDoc `json:"setting,omitempty"`
	Multi   []*settingChangeDoc `json:"multi,omitempty"`

	Activation    *activationDoc    `json:"activation,omitempty"`
	FormatUpgrade *formatUpgradeDoc `json:"formatUpgrade,omitempty"`
	Topology      *topologyDoc      `json:"topology,omitempty"`
}

type settingChangeDoc struct {
	ApplicabilityV2 *ApplicabilityV2 `json:"applicabilityV2,omitempty"`
	ApplicabilityV1 *ApplicabilityV1 `json:"applicabilityV1,omitempty"`
	SettingName     string           `json:"settingName"`
	Op              change.Op        `json:"op"`
	Key             string           `json:"key,omitempty"`
	Value           string           `json:"value,omitempty"`
}

type activationDoc struct {
	Cluster        *clustermodel.Cluster `json:"cluster"`
	LicenseContent []byte                `json:"licenseContent,omitempty"`
}

type formatUpgradeDoc struct {
	FromVersion int `json:"fromVersion"`
	ToVersion   int `json:"toVersion"`
}

type topologyDoc struct {
	ExpectedClusterUID clustermodel.UID      `json:"expectedClusterUid"`
	Cluster            *clustermodel.Cluster `json:"cluster"`
	Description        string                `json:"description"`
}

// MarshalJSON/UnmarshalJSON are left to the default struct encoding; ChangeDoc
// is intentionally a plain tagged union rather than a json.RawMessage
// wrapper, matching the cluster model's own everything-is-a-struct shape.

// EncodeChange converts a change.Change into its wire document at the given
// format version. Setting and multi-setting changes can only be encoded at
// V2 here (V1 needs cluster context; see EncodeChangeV1); the other kinds
// carry no applicability and are stamped with the version as given.
func EncodeChange(c change.Change, formatVersion int) (ChangeDoc, error) {
	switch v := c.(type) {
	case *change.SettingChange:
		doc, err := encodeSettingChange(v, formatVersion)
		if err != nil {
			return ChangeDoc{}, err
		}
		return ChangeDoc{FormatVersion: formatVersion, Kind: KindSetting, Setting: doc}, nil
	case *change.MultiSettingChange:
		docs := make([]*settingChangeDoc, 0, len(v.Children))
		for i, child := range v.Children {
			doc, err := encodeSettingChange(child, formatVersion)
			if err != nil {
				return ChangeDoc{}, fmt.Errorf("child %d: %w", i, err)
			}
			docs = append(docs, doc)
		}
		return ChangeDoc{FormatVersion: formatVersion, Kind: KindMultiSetting, Multi: docs}, nil
	case *change.ClusterActivationChange:
		return ChangeDoc{
			FormatVersion: formatVersion,
			Kind:          KindClusterActivate,
			Activation:    &activationDoc{Cluster: v.Cluster, LicenseContent: v.LicenseContent},
		}, nil
	case *change.FormatUpgradeChange:
		return ChangeDoc{
			FormatVersion: formatVersion,
			Kind:          KindFormatUpgrade,
			FormatUpgrade: &formatUpgradeDoc{FromVersion: v.FromVersion, ToVersion: v.ToVersion},
		}, nil
	case *change.TopologyChange:
		return ChangeDoc{
			FormatVersion: formatVersion,
			Kind:          KindTopology,
			Topology:      &topologyDoc{ExpectedClusterUID: v.ExpectedClusterUID, Cluster: v.Cluster, Description: v.Description},
		}, nil
	default:
		return ChangeDoc{}, fmt.Errorf("wire: unknown change type %T", c)
	}
}

func encodeSettingChange(sc *change.SettingChange, formatVersion int) (*settingChangeDoc, error) {
	doc := &settingChangeDoc{SettingName: sc.SettingName, Op: sc.Op, Key: sc.Key, Value: sc.Value}
	switch formatVersion {
	case 2:
		doc.ApplicabilityV2 = &ApplicabilityV2{
			Scope:     sc.Applicability.Scope,
			StripeUID: sc.Applicability.StripeUID,
			NodeUID:   sc.Applicability.NodeUID,
		}
	case 1:
		return nil, fmt.Errorf("wire: V1 encoding requires cluster context to resolve stripe index/node name; use EncodeChangeV1")
	default:
		return nil, fmt.Errorf("wire: unsupported format version %d", formatVersion)
	}
	return doc, nil
}

// EncodeChangeV1 encodes a change.Change in the legacy index+name
// applicability shape, resolving UIDs against the given cluster.
func EncodeChangeV1(c change.Change, cluster *clustermodel.Cluster) (ChangeDoc, error) {
	sc, ok := c.(*change.SettingChange)
	if !ok {
		return ChangeDoc{}, fmt.Errorf("wire: only setting changes can be encoded as V1")
	}
	doc, err := settingChangeToV1(sc, cluster)
	if err != nil {
		return ChangeDoc{}, err
	}
	return ChangeDoc{FormatVersion: 1, Kind: KindSetting, Setting: doc}, nil
}

func settingChangeToV1(sc *change.SettingChange, cluster *clustermodel.Cluster) (*settingChangeDoc, error) {
	doc := &settingChangeDoc{SettingName: sc.SettingName, Op: sc.Op, Key: sc.Key, Value: sc.Value}
	v1 := &ApplicabilityV1{Scope: sc.Applicability.Scope}
	switch sc.Applicability.Scope {
	case clustermodel.ScopeStripe, clustermodel.ScopeNode:
		idx, stripe, err := stripeIndex(cluster, sc.Applicability.StripeUID)
		if err != nil {
			return nil, err
		}
		v1.StripeID = idx
		if sc.Applicability.Scope == clustermodel.ScopeNode {
			node := stripe.NodeByUID(sc.Applicability.NodeUID)
			if node == nil {
				return nil, fmt.Errorf("wire: node %s not found in stripe %s", sc.Applicability.NodeUID, stripe.UID)
			}
			v1.NodeName = node.Name
		}
	}
	doc.ApplicabilityV1 = v1
	return doc, nil
}

func stripeIndex(cluster *clustermodel.Cluster, uid clustermodel.UID) (int, *clustermodel.Stripe, error) {
	for i, s := range cluster.Stripes {
		if s.UID == uid {
			return i, s, nil
		}
	}
	return 0, nil, fmt.Errorf("wire: stripe %s not found", uid)
}

// DecodeChange converts a wire ChangeDoc back into a change.Change, binding
// SettingChanges to the given catalog. V1 documents are resolved against
// cluster (stripe index / node name -> UID) into an ordinary change that
// carries no mark of its V1 origin; cluster may be nil for V2 documents and for FormatUpgradeChange /
// ClusterActivationChange documents, which carry no applicability.
func DecodeChange(doc ChangeDoc, catalog *settingcatalog.Catalog, cluster *clustermodel.Cluster) (change.Change, error) {
	switch doc.Kind {
	case KindSetting:
		if doc.Setting == nil {
			return nil, fmt.Errorf("wire: setting change document missing setting body")
		}
		return decodeSettingChange(doc.Setting, doc.FormatVersion, catalog, cluster)
	case KindMultiSetting:
		children := make([]*change.SettingChange, 0, len(doc.Multi))
		for i, d := range doc.Multi {
			sc, err := decodeSettingChange(d, doc.FormatVersion, catalog, cluster)
			if err != nil {
				return nil, fmt.Errorf("child %d: %w", i, err)
			}
			children = append(children, sc)
		}
		return change.NewMultiSettingChange(children...), nil
	case KindClusterActivate:
		if doc.Activation == nil {
			return nil, fmt.Errorf("wire: activation document missing body")
		}
		return change.NewClusterActivationChange(doc.Activation.Cluster, doc.Activation.LicenseContent), nil
	case KindFormatUpgrade:
		if doc.FormatUpgrade == nil {
			return nil, fmt.Errorf("wire: format upgrade document missing body")
		}
		return change.NewFormatUpgradeChange(doc.FormatUpgrade.FromVersion, doc.FormatUpgrade.ToVersion), nil
	case KindTopology:
		if doc.Topology == nil {
			return nil, fmt.Errorf("wire: topology document missing body")
		}
		return &change.TopologyChange{
			ExpectedClusterUID: doc.Topology.ExpectedClusterUID,
			Cluster:            doc.Topology.Cluster,
			Description:        doc.Topology.Description,
		}, nil
	default:
		return nil, fmt.Errorf("wire: unknown change kind %q", doc.Kind)
	}
}

func decodeSettingChange(d *settingChangeDoc, formatVersion int, catalog *settingcatalog.Catalog, cluster *clustermodel.Cluster) (*change.SettingChange, error) {
	applicability, err := decodeApplicability(d, formatVersion, cluster)
	if err != nil {
		return nil, err
	}
	sc := change.NewSettingChange(catalog, applicability, d.SettingName, d.Op, d.Key, d.Value)
	return sc, nil
}

func decodeApplicability(d *settingChangeDoc, formatVersion int, cluster *clustermodel.Cluster) (clustermodel.Applicability, error) {
	switch formatVersion {
	case 2:
		if d.ApplicabilityV2 == nil {
			return clustermodel.Applicability{}, fmt.Errorf("wire: V2 document missing applicabilityV2")
		}
		a := d.ApplicabilityV2
		return clustermodel.Applicability{Scope: a.Scope, StripeUID: a.StripeUID, NodeUID: a.NodeUID}, nil
	case 1:
		if d.ApplicabilityV1 == nil {
			return clustermodel.Applicability{}, fmt.Errorf("wire: V1 document missing applicabilityV1")
		}
		if cluster == nil {
			return clustermodel.Applicability{}, fmt.Errorf("wire: decoding a V1 document requires cluster context")
		}
		a := d.ApplicabilityV1
		switch a.Scope {
		case clustermodel.ScopeCluster:
			return clustermodel.ClusterApplicability(), nil
		case clustermodel.ScopeStripe:
			stripe, err := stripeByIndex(cluster, a.StripeID)
			if err != nil {
				return clustermodel.Applicability{}, err
			}
			return clustermodel.StripeApplicability(stripe.UID), nil
		case clustermodel.ScopeNode:
			stripe, err := stripeByIndex(cluster, a.StripeID)
			if err != nil {
				return clustermodel.Applicability{}, err
			}
			node := stripe.NodeByName(a.NodeName)
			if node == nil {
				return clustermodel.Applicability{}, fmt.Errorf("wire: node %q not found in stripe index %d", a.NodeName, a.StripeID)
			}
			return clustermodel.NodeApplicability(stripe.UID, node.UID), nil
		default:
			return clustermodel.Applicability{}, fmt.Errorf("wire: unknown V1 scope %q", a.Scope)
		}
	default:
		return clustermodel.Applicability{}, fmt.Errorf("wire: unsupported format version %d", formatVersion)
	}
}

func stripeByIndex(cluster *clustermodel.Cluster, idx int) (*clustermodel.Stripe, error) {
	if idx < 0 || idx >= len(cluster.Stripes) {
		return nil, fmt.Errorf("wire: stripe index %d out of range", idx)
	}
	return cluster.Stripes[idx], nil
}
