// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// zendmn evaluates DMN decisions from the command line.
//
// Usage:
//
//	# Evaluate a decision with variables from a yaml file
//	zendmn eval --file dinner.dmn --decision dish --vars variables.yaml
//
//	# Set single variables and print the engine metrics afterwards
//	zendmn eval --file dinner.dmn --decision dish --set season=Summer --set guestCount=15 --metrics
//
//	# List the decisions of a file
//	zendmn decisions --file dinner.dmn
package main

func main() {
	Execute()
}
