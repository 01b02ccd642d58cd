// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package validation holds field validators shared by configuration and
// command-line checks.
package validation

import (
	"net"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"grimm.is/hostblock/internal/errors"
)

var (
	// nftables object names: letter first, then alphanumeric, dash, underscore, dot.
	identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

	// Characters that never belong in names passed to the kernel.
	dangerousChars = []string{";", "|", "&", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}
)

// MaxIdentifierLen is the kernel limit for nftables table and chain names
// (NFT_NAME_MAXLEN minus the terminator).
const MaxIdentifierLen = 255

// ValidateIdentifier validates an nftables table or chain name.
func ValidateIdentifier(id string) error {
	if id == "" {
		return errors.New(errors.KindValidation, "identifier cannot be empty")
	}
	if len(id) > MaxIdentifierLen {
		return errors.Errorf(errors.KindValidation, "identifier too long (max %d characters)", MaxIdentifierLen)
	}
	for _, char := range dangerousChars {
		if strings.Contains(id, char) {
			return errors.Errorf(errors.KindValidation, "identifier contains dangerous character: %q", char)
		}
	}
	if !identifierRegex.MatchString(id) {
		return errors.Errorf(errors.KindValidation, "invalid identifier: %q (must start with a letter, then alphanumeric with -_.)", id)
	}
	return nil
}

// ValidateAllowlist checks that value is one of allowed.
func ValidateAllowlist(value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return errors.Errorf(errors.KindValidation, "unknown value %q (must be one of: %s)", value, strings.Join(allowed, ", "))
}

// ValidatePortNumber validates a TCP port number.
func ValidatePortNumber(port int) error {
	if port < 1 || port > 65535 {
		return errors.Errorf(errors.KindValidation, "invalid port number: %d (must be 1-65535)", port)
	}
	return nil
}

// ValidateRange checks lo <= n <= hi.
func ValidateRange(n, lo, hi int) error {
	if n < lo || n > hi {
		return errors.Errorf(errors.KindValidation, "%d out of range %d-%d", n, lo, hi)
	}
	return nil
}

// ValidateListenAddr validates a host:port listen address. An empty host
// means all interfaces.
func ValidateListenAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.Wrap(err, errors.KindValidation, "invalid listen address")
	}
	if host != "" && net.ParseIP(host) == nil && host != "localhost" {
		return errors.Errorf(errors.KindValidation, "listen host must be an IP address or localhost: %q", host)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return errors.Errorf(errors.KindValidation, "invalid listen port: %q", port)
	}
	// 0 asks the kernel for a free port.
	return ValidateRange(n, 0, 65535)
}

// SanitizeString removes dangerous characters from a string for display.
func SanitizeString(s string) string {
	for _, char := range dangerousChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}
