package model

// Entity names used as cache keys and in the activity log.
const (
	EntityUsers           = "users"
	EntityAllocations     = "allocatedFasTags"
	EntityTransactions    = "transactions"
	EntityAccessPasswords = "walletAccessPasswords"
)

// CacheableEntities lists every entity served through the record cache.
var CacheableEntities = []string{
	EntityUsers,
	EntityAllocations,
	EntityTransactions,
	EntityAccessPasswords,
}
