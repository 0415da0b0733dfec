// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migrations bundles the versioned DDL of every storage driver so the
// binary can migrate its database without files on disk.
package migrations

import "embed"

// FS holds one directory per storage driver ("postgres", "sqlite").
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
