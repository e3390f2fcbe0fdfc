// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package profile

import (
	"os"
	"strings"
)

type ProfileType string

var Current = DEV // dev profile as default

const (
	DEV  ProfileType = "DEV"
	TEST ProfileType = "TEST"
	PROD ProfileType = "PROD"
)

// InitProfile reads the profile from ZENDMN_PROFILE or PROFILE. Unknown
// values keep the current profile.
func InitProfile() ProfileType {
	value := os.Getenv("ZENDMN_PROFILE")
	if value == "" {
		value = os.Getenv("PROFILE")
	}
	switch ProfileType(strings.ToUpper(value)) {
	case DEV:
		Current = DEV
	case TEST:
		Current = TEST
	case PROD:
		Current = PROD
	}
	return Current
}
