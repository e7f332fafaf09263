package security

import (
	"fmt"
	"regexp"
	"strings"
)

// KeyNamespace is the fixed prefix every storage key must live under.
const KeyNamespace = "properties/"

const maxReportedKeys = 3

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ValidateKeys rejects keys outside the namespace, keys with a parent
// directory segment, and absolute paths. At most the first three offenders
// are reported.
func ValidateKeys(keys []string) error {
	var bad []string
	for _, key := range keys {
		if !keyShapeOK(key) {
			bad = append(bad, key)
			if len(bad) == maxReportedKeys {
				break
			}
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid storage keys: %s", strings.Join(bad, ", "))
	}
	return nil
}

// ValidateOwnedKeys additionally requires every key to sit under the
// caller's own sub-namespace.
func ValidateOwnedKeys(ownerID string, keys []string) error {
	if err := ValidateKeys(keys); err != nil {
		return err
	}
	prefix := OwnerPrefix(ownerID)
	var bad []string
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			bad = append(bad, key)
			if len(bad) == maxReportedKeys {
				break
			}
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("keys outside caller namespace: %s", strings.Join(bad, ", "))
	}
	return nil
}

// OwnerPrefix returns the namespace owned by one principal.
func OwnerPrefix(ownerID string) string {
	return KeyNamespace + ownerID + "/"
}

// SessionKeyPrefix returns the namespace one editing session writes under.
func SessionKeyPrefix(ownerID, sessionID string) string {
	return OwnerPrefix(ownerID) + sessionID + "/"
}

func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("malformed session id")
	}
	return nil
}

func keyShapeOK(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	if !strings.HasPrefix(key, KeyNamespace) {
		return false
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return false
		}
	}
	return true
}
