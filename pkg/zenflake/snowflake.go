// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package zenflake

import (
	"hash/adler32"
	"os"
	"sort"

	"github.com/bwmarrin/snowflake"
)

var (
	// NodeBits and StepBits mirror the defaults of bwmarrin/snowflake
	NodeBits = snowflake.NodeBits
	StepBits = snowflake.StepBits

	nodeMax   int64 = -1 ^ (-1 << NodeBits)
	nodeMask        = nodeMax << StepBits
	nodeShift       = StepBits
)

func GetNodeMask() int64 {
	return nodeMask
}

// GetNodeId returns the node that generated the key.
func GetNodeId(key int64) int64 {
	return (key & GetNodeMask()) >> int64(nodeShift)
}

// NewNode returns a key generator for the given node id.
func NewNode(nodeId int64) (*snowflake.Node, error) {
	return snowflake.NewNode(nodeId)
}

// NewEnvironmentNode derives the node id from a hash of the process
// environment. Two processes with the same environment share the node id.
func NewEnvironmentNode() (*snowflake.Node, error) {
	environ := os.Environ()
	sort.Strings(environ)
	hash32 := adler32.New()
	for _, e := range environ {
		_, _ = hash32.Write([]byte(e))
	}
	return NewNode(int64(hash32.Sum32()) & nodeMax)
}
