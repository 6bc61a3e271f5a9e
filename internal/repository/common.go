package repository

import "strings"

// sqlite reports unique-key conflicts as plain errors; the three participant
// keys share this detection path.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
