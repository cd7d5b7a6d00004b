// Copyright 2022 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package econ

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseFilter parses a single filter of the form
//
//	policy,section,benefit[,quantity,operator,value]*
//
// Numeric values are parsed as C integer literals (0x for hex, 0 for octal).
func ParseFilter(line string) (*Filter, error) {
	var err error

	tokens := strings.Split(line, ",")
	if len(tokens) < 3 {
		return nil, econError("invalid filter %q: too few fields", line)
	}

	f := &Filter{}
	if f.Policy, err = ParsePolicy(tokens[0]); err != nil {
		return nil, err
	}
	if f.Section, err = ParseSection(tokens[1]); err != nil {
		return nil, err
	}
	if f.Benefit, err = parseValue(tokens[2]); err != nil {
		return nil, err
	}

	for rest := tokens[3:]; len(rest) > 0 && rest[0] != ""; rest = rest[3:] {
		if len(rest) < 3 {
			return nil, econError("invalid filter %q: incomplete comparison", line)
		}
		c := Comparison{}
		if c.Quantity, err = ParseQuantity(rest[0]); err != nil {
			return nil, err
		}
		if c.Op, err = ParseOperator(rest[1]); err != nil {
			return nil, err
		}
		if c.Value, err = parseValue(rest[2]); err != nil {
			return nil, err
		}
		f.Comparisons = append(f.Comparisons, c)
	}

	return f, nil
}

// ParseFilters parses newline-terminated filters from data. It stops at the
// first empty, malformed or unterminated line and returns the filters parsed
// so far together with the number of bytes they took, including newlines.
// It is an error if no filter could be parsed.
func ParseFilters(data []byte) ([]*Filter, int, error) {
	var (
		filters  []*Filter
		consumed int
		err      error
	)

	for consumed < len(data) {
		end := bytes.IndexByte(data[consumed:], '\n')
		if end <= 0 {
			break
		}
		line := string(data[consumed : consumed+end])

		var f *Filter
		if f, err = ParseFilter(line); err != nil {
			break
		}
		filters = append(filters, f)
		consumed += end + 1
	}

	if len(filters) == 0 {
		if err == nil {
			return nil, 0, errors.Wrap(ErrInvalidFilter, "no complete filter")
		}
		return nil, 0, errors.Wrapf(ErrInvalidFilter, "%v", err)
	}

	if err != nil {
		log.Debug("ignoring filters after %d bytes: %v", consumed, err)
	}

	return filters, consumed, nil
}

func parseValue(token string) (uint64, error) {
	if strings.Contains(token, "_") {
		return 0, econError("invalid value %q", token)
	}
	val, err := strconv.ParseUint(token, 0, 64)
	if err != nil {
		return 0, econError("invalid value %q: %v", token, err)
	}
	return val, nil
}
