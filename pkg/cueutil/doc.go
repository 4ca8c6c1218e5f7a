// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing utilities.
//
// Both the forgefile manifest and the application config are CUE documents
// validated against embedded schemas. This package holds the common 3-step
// parsing flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// # Usage
//
//	//go:embed forgefile_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Forgefile](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Forgefile",
//	    cueutil.WithFilename("forgefile.cue"),
//	)
//	if err != nil {
//	    return nil, err // error includes the CUE path of the invalid value
//	}
//	return result.Value, nil
package cueutil
