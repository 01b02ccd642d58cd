// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package configdoc generates the configuration reference from the HCL
// struct definitions in internal/config.
//
// It reads Go doc comments, hcl struct tags and annotation lines:
//
//	// @default: "netlink"
//	// @enum: netlink, nfqueue
//	// @example: ["ads.example.net"]
package configdoc
