// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command hostblock discards HTTP requests for a blocked host that netfilter
// hands to user space through NFQUEUE.
//
//	nft add rule ip filter output tcp dport 80 queue num 0
//	hostblock -queue 0 ads.example.net
package main

import (
	"os"

	"grimm.is/hostblock/cmd"
)

func main() {
	os.Exit(cmd.Run(os.Args[1:], os.Stdout, os.Stderr))
}
