// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package envscan

import (
	"errors"
	"fmt"
)

// Sentinel errors for the envscan package.
var (
	// ErrEmptyInput indicates zero declaration layers and zero source
	// files were supplied. This is the only fatal input condition.
	ErrEmptyInput = errors.New("empty input: no declaration layers and no source files")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// ParseError reports one malformed declaration line. Parsing of the
// remaining lines of the same file continues.
type ParseError struct {
	// File is the layer path containing the bad line.
	File string `json:"file"`

	// Line is the 1-indexed line number.
	Line int `json:"line"`

	// Reason describes why the line could not be parsed.
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// ScanError reports one unreadable or non-text source file. The file is
// excluded from usage results; the rest of the run proceeds.
type ScanError struct {
	// File is the source path that failed to scan.
	File string `json:"file"`

	// Reason describes the failure.
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}
