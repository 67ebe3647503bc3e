// internal/domain/record.go
package domain

// RecordKind names one of the four durable records.
type RecordKind string

const (
	RecordCredential RecordKind = "credential"
	RecordProfile    RecordKind = "profile"
	RecordPlan       RecordKind = "plan"
	RecordProgress   RecordKind = "progress"
)

// Storage keys, one per record kind.
const (
	KeyCredential = "fitflow_api_key"
	KeyProfile    = "fitflow_user_profile"
	KeyPlan       = "fitflow_routine"
	KeyProgress   = "fitflow_progress"
)

// RecordKinds lists every record kind in creation order.
var RecordKinds = []RecordKind{RecordCredential, RecordProfile, RecordPlan, RecordProgress}

// Key returns the storage key for the kind.
func (k RecordKind) Key() string {
	switch k {
	case RecordCredential:
		return KeyCredential
	case RecordProfile:
		return KeyProfile
	case RecordPlan:
		return KeyPlan
	case RecordProgress:
		return KeyProgress
	}
	return ""
}

// RecordKindForKey maps a storage key back to its kind.
func RecordKindForKey(key string) (RecordKind, bool) {
	for _, k := range RecordKinds {
		if k.Key() == key {
			return k, true
		}
	}
	return "", false
}

// RecordKeys lists every storage key.
func RecordKeys() []string {
	keys := make([]string, len(RecordKinds))
	for i, k := range RecordKinds {
		keys[i] = k.Key()
	}
	return keys
}
