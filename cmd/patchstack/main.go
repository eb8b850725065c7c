// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/google/patchstack/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
