package wgobfs

import (
	"os"
	"strconv"

	"github.com/flynn/json5"
)

// queueProfile holds the keepalive burst tuning that the flat rule file has
// no room for (spec.md's KeepaliveDropper.min/max are currently hardcoded
// at the call site in the source this was ported from).
type queueProfile struct {
	KeepaliveMin *uint8 `json:"keepaliveMin"`
	KeepaliveMax *uint8 `json:"keepaliveMax"`
}

// LoadProfiles reads the optional "<configPath>.profiles.json5" sidecar, a
// JSON5 object keyed by decimal queue number. A missing sidecar is not an
// error — every rule simply keeps the spec default (min=0, max=9). JSON5 is
// used (rather than plain JSON) because it is already a dependency of this
// lineage of tooling and its trailing-comma/comment tolerance is a better
// fit for a hand-edited ops file than strict JSON.
func LoadProfiles(configPath string) (map[uint16]queueProfile, error) {
	data, err := os.ReadFile(configPath + ".profiles.json5")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var raw map[string]queueProfile
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	profiles := make(map[uint16]queueProfile, len(raw))
	for k, v := range raw {
		queue, err := strconv.ParseUint(k, 10, 16)
		if err != nil {
			continue
		}
		profiles[uint16(queue)] = v
	}
	return profiles, nil
}

// applyProfiles overrides each rule's keepalive bounds with the matching
// profile entry, when present. Rules without a matching queue number are
// left at the spec defaults LoadRules already set.
func applyProfiles(rules []*Rule, profiles map[uint16]queueProfile) {
	for _, r := range rules {
		p, ok := profiles[r.Queue]
		if !ok {
			continue
		}
		if p.KeepaliveMin != nil {
			r.KeepaliveMin = *p.KeepaliveMin
		}
		if p.KeepaliveMax != nil {
			r.KeepaliveMax = *p.KeepaliveMax
		}
	}
}

// LoadRulesWithProfiles loads the flat rule file at path and, if present,
// applies its JSON5 profile sidecar on top.
func LoadRulesWithProfiles(path string) ([]*Rule, error) {
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	profiles, err := LoadProfiles(path)
	if err != nil {
		return nil, err
	}
	applyProfiles(rules, profiles)
	return rules, nil
}
