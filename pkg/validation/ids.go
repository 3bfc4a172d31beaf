// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation checks model-provided inputs before they reach the
// hiring-system API. The LLM invents strings under pressure; these
// validators make sure an invented "id" fails loudly here instead of
// turning into a confusing ATS error, and that nothing structurally odd
// is interpolated into request bodies.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// entityIDPattern matches the record ids the ATS hands out: UUID-shaped,
// case-insensitive.
var entityIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateEntityID validates a candidate or application id.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("entity id is empty")
	}
	if !entityIDPattern.MatchString(id) {
		return fmt.Errorf("entity id %q is not a valid record id", truncate(id))
	}
	return nil
}

// ValidateEntityIDs validates every id in the list and reports the first
// failure.
func ValidateEntityIDs(ids []string) error {
	for _, id := range ids {
		if err := ValidateEntityID(id); err != nil {
			return err
		}
	}
	return nil
}

// maxStageNameLen bounds stage titles; anything longer is not a real
// stage name and would bloat error messages and chat cards.
const maxStageNameLen = 80

// ValidateStageName validates a human-entered interview stage title.
func ValidateStageName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("stage name is empty")
	}
	if len(name) > maxStageNameLen {
		return fmt.Errorf("stage name %q is too long", truncate(name))
	}
	if strings.ContainsAny(name, "\n\r\t") {
		return fmt.Errorf("stage name contains control characters")
	}
	return nil
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
