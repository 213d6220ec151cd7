/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"strconv"
	"strings"
)

// ParseUint64 accepts decimal, "0x"/"0X"-prefixed, "#x"-prefixed, and
// trailing-"h" hex encodings, per spec §6's "multiple encoded integer
// forms" requirement for vendor/product codes and register masks. Grounded
// on ingest/config/parse.go's ParseUint64 (0x-prefix only), extended with
// the #x and h-suffix forms documented in
// original_source/xml_decoder.py's _parse_int and spec §6.
func ParseUint64(v string) (i uint64, err error) {
	s := strings.TrimSpace(v)
	base := 10
	switch {
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		s = s[2:]
		base = 16
	case strings.HasPrefix(s, "#x"), strings.HasPrefix(s, "#X"):
		s = s[2:]
		base = 16
	case strings.HasSuffix(strings.ToLower(s), "h") && len(s) > 1:
		s = s[:len(s)-1]
		base = 16
	}
	return strconv.ParseUint(s, base, 64)
}

// ParseInt64 is ParseUint64's signed counterpart.
func ParseInt64(v string) (i int64, err error) {
	s := strings.TrimSpace(v)
	base := 10
	switch {
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		s = s[2:]
		base = 16
	case strings.HasPrefix(s, "#x"), strings.HasPrefix(s, "#X"):
		s = s[2:]
		base = 16
	case strings.HasSuffix(strings.ToLower(s), "h") && len(s) > 1:
		s = s[:len(s)-1]
		base = 16
	}
	return strconv.ParseInt(s, base, 64)
}

// parseOperationMode maps a config string (name or numeric mode value) to
// a cia402.Mode, used when decoding a drive section's Operation_Mode field.
func parseOperationMode(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case ``, "pp":
		return 1, nil
	case "vl":
		return 2, nil
	case "pv":
		return 3, nil
	case "hm":
		return 6, nil
	case "csp":
		return 8, nil
	case "csv":
		return 9, nil
	case "pt":
		return 10, nil
	}
	if v, err := ParseInt64(s); err == nil {
		return int(v), nil
	}
	return 0, &modeParseError{s}
}

type modeParseError struct{ s string }

func (e *modeParseError) Error() string {
	return "unknown operation mode " + strconv.Quote(e.s)
}
