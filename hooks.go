package tiercache

// Level identifies which tier served a hit.
type Level string

const (
	LevelMemory Level = "memory"
	LevelStore  Level = "store"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// Get was served from the given tier.
	Hit(namespace string, level Level)
	// Get found nothing in either tier (including degraded reads).
	Miss(namespace string)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "expired", "value_decode"}
	SelfHeal(namespace, key, reason string)

	// A store call failed. op ∈ {"open", "get", "put", "delete", "clear"}
	StoreError(namespace, op string, err error)

	// A value read or written through the store was not mirrored into memory
	// because a clear or invalidation raced with it.
	PopulateSkipped(namespace, key string)

	// GenStore errors (snapshot or bump).
	GenError(op string, err error)

	// The sync loop dropped memory entries after a remote invalidation.
	// full is true when the whole layer was cleared (epoch moved).
	RemoteInvalidation(namespace string, dropped int, full bool)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string, Level)                    {}
func (NopHooks) Miss(string)                          {}
func (NopHooks) SelfHeal(string, string, string)      {}
func (NopHooks) StoreError(string, string, error)     {}
func (NopHooks) PopulateSkipped(string, string)       {}
func (NopHooks) GenError(string, error)               {}
func (NopHooks) RemoteInvalidation(string, int, bool) {}
