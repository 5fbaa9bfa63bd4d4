package nomadclient

import "github.com/cljohnso/terracotta-platform/internal/wire"

// FieldDivergence names which field(s) a server disagreed with the
// reference server on during the consistency check (spec §4.3 step 2: "the
// coordinator surfaces the divergence map").
type FieldDivergence struct {
	Version        bool
	HighestVersion bool
	LatestChange   bool
}

func (d FieldDivergence) any() bool {
	return d.Version || d.HighestVersion || d.LatestChange
}

// DivergenceReport is the coordinator's consistency-check output: per
// address, which fields disagreed with the reference server, plus the set
// of addresses that were unreachable entirely.
type DivergenceReport struct {
	Reference   string
	Unreachable []string
	Mismatched  map[string]FieldDivergence
}

func (r *DivergenceReport) empty() bool {
	return len(r.Unreachable) == 0 && len(r.Mismatched) == 0
}

// checkConsistency compares every reachable server's Discover response
// against one reference response, whichever the map iteration yields first
// (not necessarily the first target in order), per spec §4.3 step 2: "all servers must
// report the same v, same h, and same committed latestChange".
func checkConsistency(responses map[string]wire.DiscoverResponse, unreachable []string) *DivergenceReport {
	report := &DivergenceReport{Unreachable: unreachable, Mismatched: map[string]FieldDivergence{}}
	if len(responses) == 0 {
		return report
	}

	var reference string
	var refResp wire.DiscoverResponse
	for addr, resp := range responses {
		reference = addr
		refResp = resp
		break
	}
	report.Reference = reference

	for addr, resp := range responses {
		if addr == reference {
			continue
		}
		var fd FieldDivergence
		fd.Version = resp.CurrentVersion != refResp.CurrentVersion
		fd.HighestVersion = resp.HighestVersion != refResp.HighestVersion
		fd.LatestChange = !sameLatestChange(resp.LatestChange, refResp.LatestChange)
		if fd.any() {
			report.Mismatched[addr] = fd
		}
	}
	return report
}

func sameLatestChange(a, b *wire.LatestChangeInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
