// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package metrics

import (
	"github.com/google/nftables"
	"github.com/google/nftables/expr"

	"grimm.is/hostblock/internal/nftrule"
)

// collectRuleCounters reads steering rule counters over native netlink.
// A missing table yields no counters.
func collectRuleCounters(tableName string) ([]RuleCounter, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, err
	}

	tables, err := conn.ListTablesOfFamily(nftables.TableFamilyIPv4)
	if err != nil {
		return nil, err
	}

	var targetTable *nftables.Table
	for _, t := range tables {
		if t.Name == tableName {
			targetTable = t
			break
		}
	}
	if targetTable == nil {
		return nil, nil
	}

	chains, err := conn.ListChainsOfTableFamily(nftables.TableFamilyIPv4)
	if err != nil {
		return nil, err
	}

	var out []RuleCounter
	for _, chain := range chains {
		if chain.Table.Name != tableName {
			continue
		}

		rules, err := conn.GetRules(targetTable, chain)
		if err != nil {
			continue
		}
		out = append(out, countersFromRules(rules)...)
	}
	return out, nil
}

func countersFromRules(rules []*nftables.Rule) []RuleCounter {
	var out []RuleCounter
	for _, rule := range rules {
		port, ok := nftrule.ParseUserData(rule.UserData)
		if !ok {
			continue
		}
		rc := RuleCounter{Port: port}
		for _, e := range rule.Exprs {
			if c, ok := e.(*expr.Counter); ok {
				rc.Packets = c.Packets
				rc.Bytes = c.Bytes
			}
		}
		out = append(out, rc)
	}
	return out
}
