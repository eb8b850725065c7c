// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package patchedit renders and parses the editable buffer shown to the
// user by `new` (spec.md §4.7), grounded on
// original_source/src/patchedit/interactive.rs. This buffer is a separate
// round-trippable format from the read-only patches/<name> tree blob
// rendered by internal/stack's TreeBuilder.
package patchedit

import (
	"bufio"
	"strings"
	"time"
)

// Description is the parsed contents of an edit buffer.
type Description struct {
	Patch   string
	Author  string
	Date    time.Time
	Message string
}

const dateLayout = "2006-01-02 15:04:05 -0700"

const instructions = `
# Please enter the message for your patch. Lines starting with '#' will
# be ignored, and an empty message aborts the operation.
`

// Render produces the editable buffer text for d.
func Render(d Description) string {
	var b strings.Builder
	b.WriteString("Patch:  " + d.Patch + "\n")
	b.WriteString("Author: " + d.Author + "\n")
	b.WriteString("Date:   " + d.Date.Format(dateLayout) + "\n")
	b.WriteString("\n")
	b.WriteString(d.Message)
	if !strings.HasSuffix(d.Message, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(instructions)
	return b.String()
}

// Parse reverses Render: it strips '#'-prefixed instructional lines, reads
// the header block, and returns the remaining body as Message. It does not
// validate Patch as a well-formed patch name; that is internal/patchname's
// job once the caller has the parsed string in hand.
func Parse(text string, fallback Description) (Description, error) {
	d := fallback
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inHeader := true
	var body strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		if inHeader {
			if line == "" {
				inHeader = false
				continue
			}
			switch {
			case strings.HasPrefix(line, "Patch:"):
				d.Patch = strings.TrimSpace(strings.TrimPrefix(line, "Patch:"))
			case strings.HasPrefix(line, "Author:"):
				d.Author = strings.TrimSpace(strings.TrimPrefix(line, "Author:"))
			case strings.HasPrefix(line, "Date:"):
				raw := strings.TrimSpace(strings.TrimPrefix(line, "Date:"))
				if t, err := time.Parse(dateLayout, raw); err == nil {
					d.Date = t
				}
			}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	if err := sc.Err(); err != nil {
		return Description{}, err
	}
	d.Message = strings.TrimRight(body.String(), "\n")
	return d, nil
}
