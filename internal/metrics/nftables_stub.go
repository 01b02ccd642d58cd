// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package metrics

// collectRuleCounters is a no-op on non-Linux platforms.
func collectRuleCounters(tableName string) ([]RuleCounter, error) {
	return nil, nil
}
